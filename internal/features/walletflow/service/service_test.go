package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"rewards-bot-backend/internal/features/winner/models"
	winnersqlite "rewards-bot-backend/internal/features/winner/repository/sqlite"
)

func newTestRepo(t *testing.T) *winnersqlite.Repository {
	t.Helper()
	repo, err := winnersqlite.Open(":memory:")
	require.NoError(t, err)
	return repo
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	return key, addr
}

func signPersonal(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

type seed struct {
	username   string
	telegramID int64
	wallet     string
	wvc        string
	wvcUsed    bool
	proof      bool
}

func seedWinner(t *testing.T, repo *winnersqlite.Repository, s seed) {
	t.Helper()
	ctx := context.Background()
	patch := models.WinnerPatch{TelegramID: &s.telegramID}
	if s.wallet != "" {
		patch.Wallet = &s.wallet
	}
	if s.wvc != "" {
		patch.WvcCode = &s.wvc
	}
	require.NoError(t, repo.Upsert(ctx, s.username, patch))
	if s.wvcUsed {
		require.NoError(t, repo.MarkWvcUsed(ctx, s.username))
	}
	if s.proof {
		require.NoError(t, repo.AddProof(ctx, &models.ProofRecord{
			TelegramID: s.telegramID,
			FileID:     "file-" + s.username,
			FileHash:   strings.Repeat("ab", 32),
		}))
	}
}

type captureNotifier struct {
	registrations int
	changes       int
	lastOld       string
	lastNew       string
}

func (n *captureNotifier) NotifyRegistration(ctx context.Context, username string, telegramID int64, wallet, signature, messageHash string) error {
	n.registrations++
	return nil
}

func (n *captureNotifier) NotifyChange(ctx context.Context, username string, telegramID int64, oldWallet, newWallet, signature, messageHash string) error {
	n.changes++
	n.lastOld, n.lastNew = oldWallet, newWallet
	return nil
}

func newTestService(repo *winnersqlite.Repository, notifier Notifier) *Service {
	return New(Config{
		Repo:     repo,
		Notifier: notifier,
		Deadline: time.Now().Add(24 * time.Hour),
	})
}

func TestRegisterFlow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	notifier := &captureNotifier{}
	svc := newTestService(repo, notifier)

	key, addr := newWallet(t)
	seedWinner(t, repo, seed{username: "alice", telegramID: 100, proof: true})

	_, err := svc.StartRegistration(ctx, 100)
	require.NoError(t, err)

	rec, err := svc.SetWallet(ctx, 100, "  "+strings.ToUpper(addr[2:4])+addr[4:]+"  ")
	require.Error(t, err) // mangled prefix, not a valid address

	rec, err = svc.SetWallet(ctx, 100, " "+addr+" ")
	require.NoError(t, err)
	require.Equal(t, addr, *rec.Wallet)

	// Wrong message must not be accepted.
	badSig := signPersonal(t, key, "something else entirely")
	_, _, err = svc.SubmitRegistrationSignature(ctx, 100, badSig)
	require.ErrorIs(t, err, ErrInvalidSignature)

	stored, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, stored.RegistrationSignature)

	sig := signPersonal(t, key, RegistrationMessage("alice", addr))
	hash, _, err := svc.SubmitRegistrationSignature(ctx, 100, sig)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "0x"))

	stored, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.RegistrationSignature)
	require.Equal(t, sig, *stored.RegistrationSignature)
	require.Equal(t, hash, *stored.RegistrationMessageHash)
	require.Equal(t, 1, notifier.registrations)
}

func TestRegisterSignatureBeforeWallet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	key, _ := newWallet(t)
	seedWinner(t, repo, seed{username: "bob", telegramID: 200, proof: true})

	sig := signPersonal(t, key, "whatever")
	_, _, err := svc.SubmitRegistrationSignature(ctx, 200, sig)
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestChangeFlow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	notifier := &captureNotifier{}
	svc := newTestService(repo, notifier)

	oldKey, oldAddr := newWallet(t)
	newKey, newAddr := newWallet(t)
	seedWinner(t, repo, seed{username: "carol", telegramID: 300, wallet: oldAddr, proof: true})

	_, err := svc.StartChange(ctx, 300)
	require.NoError(t, err)

	// Old-wallet proof signed by the wrong key fails and changes nothing.
	wrongSig := signPersonal(t, newKey, ChangeOldMessage("carol", oldAddr))
	_, _, err = svc.SubmitOldSignature(ctx, 300, wrongSig)
	require.ErrorIs(t, err, ErrInvalidSignature)

	oldSig := signPersonal(t, oldKey, ChangeOldMessage("carol", oldAddr))
	_, _, err = svc.SubmitOldSignature(ctx, 300, oldSig)
	require.NoError(t, err)
	require.Equal(t, "pending", notifier.lastNew)

	// New signature before staging the new wallet is out of order.
	early := signPersonal(t, newKey, ChangeNewMessage("carol", oldAddr, newAddr))
	_, err = svc.SubmitNewSignature(ctx, 300, early)
	require.ErrorIs(t, err, ErrOutOfOrder)

	rec, err := svc.StageNewWallet(ctx, 300, newAddr)
	require.NoError(t, err)
	require.Equal(t, newAddr, *rec.PendingNewWallet)
	require.Equal(t, oldAddr, *rec.Wallet)

	// The signature covers the staged pair; the old key cannot produce it.
	oldKeySig := signPersonal(t, oldKey, ChangeNewMessage("carol", oldAddr, newAddr))
	_, err = svc.SubmitNewSignature(ctx, 300, oldKeySig)
	require.ErrorIs(t, err, ErrInvalidSignature)

	newSig := signPersonal(t, newKey, ChangeNewMessage("carol", oldAddr, newAddr))
	res, err := svc.SubmitNewSignature(ctx, 300, newSig)
	require.NoError(t, err)
	require.Equal(t, oldAddr, res.OldWallet)
	require.Equal(t, newAddr, res.NewWallet)

	stored, err := repo.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, newAddr, *stored.Wallet)
	require.Nil(t, stored.PendingNewWallet)
	require.Equal(t, newSig, *stored.NewWalletSignature)
	require.Equal(t, newAddr, notifier.lastNew)
}

func TestChangeRequiresExistingWallet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	seedWinner(t, repo, seed{username: "dave", telegramID: 400, proof: true})

	_, err := svc.StartChange(ctx, 400)
	require.ErrorIs(t, err, ErrNoExistingWallet)

	_, _, err = svc.SubmitOldSignature(ctx, 400, "0x"+strings.Repeat("ab", 65))
	require.ErrorIs(t, err, ErrNoExistingWallet)

	_, err = svc.StageNewWallet(ctx, 400, "0x"+strings.Repeat("ab", 20))
	require.ErrorIs(t, err, ErrNoExistingWallet)
}

func TestWvcGate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	_, addr := newWallet(t)
	seedWinner(t, repo, seed{username: "erin", telegramID: 500, wvc: "WVC-123", proof: true})

	// Guides pass, mutations are blocked until the code is consumed.
	_, err := svc.StartRegistration(ctx, 500)
	require.NoError(t, err)
	_, err = svc.SetWallet(ctx, 500, addr)
	require.ErrorIs(t, err, ErrWvcRequired)

	require.NoError(t, repo.MarkWvcUsed(ctx, "erin"))

	_, err = svc.SetWallet(ctx, 500, addr)
	require.NoError(t, err)
}

func TestProofGate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	_, addr := newWallet(t)
	seedWinner(t, repo, seed{username: "frank", telegramID: 600})

	_, err := svc.SetWallet(ctx, 600, addr)
	require.ErrorIs(t, err, ErrProofRequired)

	require.NoError(t, repo.AddProof(ctx, &models.ProofRecord{
		TelegramID: 600, FileID: "f", FileHash: strings.Repeat("cd", 32),
	}))

	_, err = svc.SetWallet(ctx, 600, addr)
	require.NoError(t, err)
}

func TestDeadlineBlocksAllSteps(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, addr := newWallet(t)
	seedWinner(t, repo, seed{username: "grace", telegramID: 700, wallet: addr, proof: true})

	past := time.Now().Add(-time.Hour)
	svc := New(Config{Repo: repo, Deadline: past})

	_, err := svc.StartRegistration(ctx, 700)
	require.ErrorIs(t, err, ErrDeadlinePassed)
	_, err = svc.StartChange(ctx, 700)
	require.ErrorIs(t, err, ErrDeadlinePassed)
	_, err = svc.SetWallet(ctx, 700, addr)
	require.ErrorIs(t, err, ErrDeadlinePassed)
	_, _, err = svc.SubmitRegistrationSignature(ctx, 700, "0x"+strings.Repeat("ab", 65))
	require.ErrorIs(t, err, ErrDeadlinePassed)
	_, err = svc.SubmitNewSignature(ctx, 700, "0x"+strings.Repeat("ab", 65))
	require.ErrorIs(t, err, ErrDeadlinePassed)
}

func TestNotWhitelisted(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	_, err := svc.StartRegistration(ctx, 999)
	require.ErrorIs(t, err, ErrNotWhitelisted)
	_, err = svc.SetWallet(ctx, 999, "0x"+strings.Repeat("ab", 20))
	require.ErrorIs(t, err, ErrNotWhitelisted)
}

func TestSetWalletOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	_, first := newWallet(t)
	_, second := newWallet(t)
	seedWinner(t, repo, seed{username: "heidi", telegramID: 800, proof: true})

	_, err := svc.SetWallet(ctx, 800, first)
	require.NoError(t, err)
	_, err = svc.SetWallet(ctx, 800, second)
	require.NoError(t, err)

	stored, err := repo.GetByUsername(ctx, "heidi")
	require.NoError(t, err)
	require.Equal(t, second, *stored.Wallet)
}

func TestMalformedSignatureRejectedBeforeState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestService(repo, nil)

	_, addr := newWallet(t)
	seedWinner(t, repo, seed{username: "ivan", telegramID: 900, wallet: addr, proof: true})

	for _, sig := range []string{"", "0x1234", "not-a-signature", "0x" + strings.Repeat("zz", 65)} {
		_, _, err := svc.SubmitOldSignature(ctx, 900, sig)
		require.ErrorIs(t, err, ErrInvalidSignature, "sig=%q", sig)
	}
}

package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"rewards-bot-backend/internal/features/request/models"
	"rewards-bot-backend/internal/features/request/repository"
	filerepo "rewards-bot-backend/internal/features/request/repository/file"
	winnermodels "rewards-bot-backend/internal/features/winner/models"
	winnersqlite "rewards-bot-backend/internal/features/winner/repository/sqlite"
)

func newTestService(t *testing.T) (*Service, *winnersqlite.Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.json")
	requests, err := filerepo.Open(path)
	require.NoError(t, err)
	winners, err := winnersqlite.Open(":memory:")
	require.NoError(t, err)
	return New(requests, winners), winners, path
}

func seedWinner(t *testing.T, winners *winnersqlite.Repository, username string, telegramID int64, wallet string) {
	t.Helper()
	patch := winnermodels.WinnerPatch{TelegramID: &telegramID}
	if wallet != "" {
		patch.Wallet = &wallet
	}
	require.NoError(t, winners.Upsert(context.Background(), username, patch))
}

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

func TestSubmitAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	first, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)
	require.Equal(t, 1, first.ID)
	require.Equal(t, models.StatusPending, first.Status)
	require.Equal(t, walletA, first.OldWallet)
	require.Equal(t, walletB, first.NewWallet)

	second, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)
	require.Equal(t, 2, second.ID)
}

func TestSubmitRejectsUnknownUserAndBadWallet(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	_, err := svc.Submit(ctx, 999, walletB)
	require.ErrorIs(t, err, ErrNotWhitelisted)

	_, err = svc.Submit(ctx, 100, "not-a-wallet")
	require.ErrorIs(t, err, ErrInvalidWalletFormat)
}

func TestApproveAppliesWallet(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, req.ID, true, 42)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, decided.Status)
	require.Equal(t, int64(42), decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	rec, err := winners.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, walletB, *rec.Wallet)
}

func TestRejectLeavesWallet(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, req.ID, false, 42)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, decided.Status)

	rec, err := winners.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, walletA, *rec.Wallet)
}

func TestDecideIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	_, err = svc.Decide(ctx, req.ID, true, 1)
	require.NoError(t, err)

	_, err = svc.Decide(ctx, req.ID, false, 2)
	require.ErrorIs(t, err, repository.ErrAlreadyHandled)

	_, err = svc.Decide(ctx, 999, true, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConcurrentDecideSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Decide(ctx, req.ID, i%2 == 0, int64(i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, repository.ErrAlreadyHandled)
		}
	}
	require.Equal(t, 1, wins)
}

// failingWinners breaks the wallet write that follows an approval.
type failingWinners struct {
	*winnersqlite.Repository
}

func (f *failingWinners) SetWallet(ctx context.Context, username, wallet string) error {
	return errors.New("disk full")
}

func TestApproveSurfacesWalletApplyFailure(t *testing.T) {
	ctx := context.Background()
	requests, err := filerepo.Open(filepath.Join(t.TempDir(), "requests.json"))
	require.NoError(t, err)
	winners, err := winnersqlite.Open(":memory:")
	require.NoError(t, err)
	seedWinner(t, winners, "alice", 100, walletA)
	svc := New(requests, &failingWinners{winners})

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, req.ID, true, 42)
	require.ErrorIs(t, err, ErrWalletApplyFailed)
	require.NotNil(t, decided)
	require.Equal(t, models.StatusApproved, decided.Status)

	// The decision is durable, so a retry cannot re-run the apply.
	_, err = svc.Decide(ctx, req.ID, true, 42)
	require.ErrorIs(t, err, repository.ErrAlreadyHandled)

	// The wallet itself never moved.
	rec, err := winners.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, walletA, *rec.Wallet)
}

func TestQueueSurvivesReload(t *testing.T) {
	ctx := context.Background()
	svc, winners, path := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	reloaded, err := filerepo.Open(path)
	require.NoError(t, err)
	got, err := reloaded.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, walletB, got.NewWallet)
	require.Equal(t, models.StatusPending, got.Status)

	// New ids continue after the reloaded maximum.
	next := &models.WalletUpdateRequest{TelegramID: 100, Username: "alice", NewWallet: walletB}
	require.NoError(t, reloaded.Create(ctx, next))
	require.Equal(t, req.ID+1, next.ID)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	svc, winners, _ := newTestService(t)
	seedWinner(t, winners, "alice", 100, walletA)

	req, err := svc.Submit(ctx, 100, walletB)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, req.ID, true, 7)
	require.NoError(t, err)

	out, err := svc.ExportCSV(ctx)
	require.NoError(t, err)
	text := string(out)
	require.True(t, strings.HasPrefix(text, "id,username,"))
	require.Contains(t, text, "alice")
	require.Contains(t, text, walletB)
	require.Contains(t, text, "approved")
}

func TestCallbackDataRoundTrip(t *testing.T) {
	data := models.CallbackData(models.ActionApprove, 12)
	require.Equal(t, "req:approve:12", data)

	action, id, err := models.ParseCallbackData(data)
	require.NoError(t, err)
	require.Equal(t, models.ActionApprove, action)
	require.Equal(t, 12, id)

	for _, bad := range []string{"", "req:approve", "other:approve:1", "req:nuke:1", "req:approve:x", "req:approve:-1"} {
		_, _, err := models.ParseCallbackData(bad)
		require.ErrorIs(t, err, models.ErrBadCallback, "data=%q", bad)
	}
}

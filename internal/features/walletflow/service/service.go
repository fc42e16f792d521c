// Package service implements the wallet register and change flows. All flow
// state lives on the persisted WinnerRecord, so a half-finished flow survives
// restarts and there is no in-memory session to lose.
package service

import (
	"context"
	"errors"
	"time"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository"
	"rewards-bot-backend/internal/platform/ethsign"
)

// Notifier delivers admin-group notifications for verified steps. Sends are
// best-effort: a failed send is logged and never rolls back the state change
// that triggered it.
type Notifier interface {
	NotifyRegistration(ctx context.Context, username string, telegramID int64, wallet, signature, messageHash string) error
	NotifyChange(ctx context.Context, username string, telegramID int64, oldWallet, newWallet, signature, messageHash string) error
}

// ChangeResult reports a completed change flow.
type ChangeResult struct {
	OldWallet   string
	NewWallet   string
	MessageHash string
}

type Config struct {
	Repo     repository.Repository
	Notifier Notifier
	// Deadline is the last instant wallet mutations are accepted.
	Deadline time.Time
	// Now overrides the clock in tests; nil means time.Now.
	Now func() time.Time
}

type Service struct {
	repo     repository.Repository
	notifier Notifier
	deadline time.Time
	now      func() time.Time
}

func New(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     cfg.Repo,
		notifier: cfg.Notifier,
		deadline: cfg.Deadline,
		now:      now,
	}
}

// Deadline returns the configured cutoff, for status displays.
func (s *Service) Deadline() time.Time { return s.deadline }

// guard enforces the shared step preconditions in order: deadline,
// whitelist, WVC, proof. Guides pass mutating=false and skip the WVC and
// proof gates (the guide text tells the user about them instead).
func (s *Service) guard(ctx context.Context, telegramID int64, mutating bool) (*models.WinnerRecord, error) {
	if s.now().After(s.deadline) {
		return nil, ErrDeadlinePassed
	}
	rec, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotWhitelisted
		}
		return nil, err
	}
	if !mutating {
		return rec, nil
	}
	if rec.NeedsWVC() {
		return nil, ErrWvcRequired
	}
	ok, err := s.repo.HasProof(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProofRequired
	}
	return rec, nil
}

// StartRegistration opens the register flow and returns the record for the
// guide text (the caller shows the WVC gate hint when one is pending).
func (s *Service) StartRegistration(ctx context.Context, telegramID int64) (*models.WinnerRecord, error) {
	return s.guard(ctx, telegramID, false)
}

// StartChange opens the change flow; it requires an existing wallet.
func (s *Service) StartChange(ctx context.Context, telegramID int64) (*models.WinnerRecord, error) {
	rec, err := s.guard(ctx, telegramID, false)
	if err != nil {
		return nil, err
	}
	if !rec.HasWallet() {
		return nil, ErrNoExistingWallet
	}
	return rec, nil
}

// SetWallet validates and writes the register-flow wallet. Overwrites any
// previous value, so re-running the step is idempotent.
func (s *Service) SetWallet(ctx context.Context, telegramID int64, candidate string) (*models.WinnerRecord, error) {
	rec, err := s.guard(ctx, telegramID, true)
	if err != nil {
		return nil, err
	}
	wallet := ethsign.CleanWallet(candidate)
	if wallet == "" {
		return nil, ErrInvalidWalletFormat
	}
	if err := s.repo.SetWallet(ctx, rec.Username, wallet); err != nil {
		return nil, err
	}
	rec.Wallet = &wallet
	return rec, nil
}

// SubmitRegistrationSignature finishes the register flow. The message is
// rebuilt from the stored record; on success the signature and its SHA-256
// audit hash are persisted and the admin group is notified.
func (s *Service) SubmitRegistrationSignature(ctx context.Context, telegramID int64, signature string) (string, *models.WinnerRecord, error) {
	rec, err := s.guard(ctx, telegramID, true)
	if err != nil {
		return "", nil, err
	}
	if !ethsign.ValidSignature(signature) {
		return "", nil, ErrInvalidSignature
	}
	if !rec.HasWallet() {
		return "", nil, ErrOutOfOrder
	}
	message := RegistrationMessage(rec.Username, *rec.Wallet)
	if !ethsign.Verify(*rec.Wallet, signature, message) {
		return "", nil, ErrInvalidSignature
	}
	hash := ethsign.MessageHash(message)
	if err := s.repo.SaveRegistrationSignature(ctx, rec.Username, signature, hash); err != nil {
		return "", nil, err
	}
	s.notifyRegistration(ctx, rec.Username, telegramID, *rec.Wallet, signature, hash)
	return hash, rec, nil
}

// SubmitOldSignature verifies control of the current wallet in the change
// flow and records the proof.
func (s *Service) SubmitOldSignature(ctx context.Context, telegramID int64, signature string) (string, *models.WinnerRecord, error) {
	rec, err := s.guard(ctx, telegramID, true)
	if err != nil {
		return "", nil, err
	}
	if !ethsign.ValidSignature(signature) {
		return "", nil, ErrInvalidSignature
	}
	if !rec.HasWallet() {
		return "", nil, ErrNoExistingWallet
	}
	message := ChangeOldMessage(rec.Username, *rec.Wallet)
	if !ethsign.Verify(*rec.Wallet, signature, message) {
		return "", nil, ErrInvalidSignature
	}
	hash := ethsign.MessageHash(message)
	if err := s.repo.SaveOldWalletSignature(ctx, rec.Username, signature, hash); err != nil {
		return "", nil, err
	}
	// New wallet is not staged yet; shown as pending in the notification.
	s.notifyChange(ctx, rec.Username, telegramID, *rec.Wallet, "pending", signature, hash)
	return hash, rec, nil
}

// StageNewWallet stores the change-flow candidate without touching the
// current wallet. Re-staging overwrites the previous candidate.
func (s *Service) StageNewWallet(ctx context.Context, telegramID int64, candidate string) (*models.WinnerRecord, error) {
	rec, err := s.guard(ctx, telegramID, true)
	if err != nil {
		return nil, err
	}
	if !rec.HasWallet() {
		return nil, ErrNoExistingWallet
	}
	wallet := ethsign.CleanWallet(candidate)
	if wallet == "" {
		return nil, ErrInvalidWalletFormat
	}
	if err := s.repo.StagePendingWallet(ctx, rec.Username, wallet); err != nil {
		return nil, err
	}
	rec.PendingNewWallet = &wallet
	return rec, nil
}

// SubmitNewSignature completes the change flow. The new wallet must sign,
// proving control of it; only then is the stored wallet swapped atomically.
func (s *Service) SubmitNewSignature(ctx context.Context, telegramID int64, signature string) (*ChangeResult, error) {
	rec, err := s.guard(ctx, telegramID, true)
	if err != nil {
		return nil, err
	}
	if !ethsign.ValidSignature(signature) {
		return nil, ErrInvalidSignature
	}
	if !rec.HasWallet() || rec.PendingNewWallet == nil || *rec.PendingNewWallet == "" {
		return nil, ErrOutOfOrder
	}
	oldWallet, newWallet := *rec.Wallet, *rec.PendingNewWallet
	message := ChangeNewMessage(rec.Username, oldWallet, newWallet)
	if !ethsign.Verify(newWallet, signature, message) {
		return nil, ErrInvalidSignature
	}
	hash := ethsign.MessageHash(message)
	if err := s.repo.CompleteChange(ctx, rec.Username, signature, hash); err != nil {
		if errors.Is(err, repository.ErrNoPendingWallet) {
			return nil, ErrOutOfOrder
		}
		return nil, err
	}
	s.notifyChange(ctx, rec.Username, telegramID, oldWallet, newWallet, signature, hash)
	return &ChangeResult{OldWallet: oldWallet, NewWallet: newWallet, MessageHash: hash}, nil
}

func (s *Service) notifyRegistration(ctx context.Context, username string, telegramID int64, wallet, signature, hash string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRegistration(ctx, username, telegramID, wallet, signature, hash); err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("registration notify failed")
	}
}

func (s *Service) notifyChange(ctx context.Context, username string, telegramID int64, oldWallet, newWallet, signature, hash string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyChange(ctx, username, telegramID, oldWallet, newWallet, signature, hash); err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("change notify failed")
	}
}

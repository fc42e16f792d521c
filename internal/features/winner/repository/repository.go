package repository

import (
	"context"
	"errors"

	"rewards-bot-backend/internal/features/winner/models"
)

var (
	// ErrNotFound is returned when no winner row matches the lookup key.
	ErrNotFound = errors.New("winner not found")
	// ErrWvcAlreadyUsed is returned by MarkWvcUsed on a consumed code.
	ErrWvcAlreadyUsed = errors.New("wvc already used")
	// ErrNoPendingWallet is returned by CompleteChange when no wallet is staged.
	ErrNoPendingWallet = errors.New("no pending wallet staged")
)

// Repository is the single owner of WinnerRecord and ProofRecord persistence.
// Implementations must serialize updates per username so a CSV import and a
// live flow step cannot lose writes against the same row.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*models.WinnerRecord, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.WinnerRecord, error)
	ListAll(ctx context.Context) ([]models.WinnerRecord, error)

	// Upsert creates or patches the row keyed by lowercase username. Only
	// non-nil patch fields overwrite existing values.
	Upsert(ctx context.Context, username string, patch models.WinnerPatch) error

	// LinkTelegram binds a Telegram account to an existing username.
	LinkTelegram(ctx context.Context, username string, telegramID int64) error

	// MarkWvcUsed flips WvcUsed false->true exactly once.
	MarkWvcUsed(ctx context.Context, username string) error

	// SetWallet writes the current wallet (register flow; overwrites).
	SetWallet(ctx context.Context, username, wallet string) error

	// StagePendingWallet stores the change-flow candidate without touching
	// the current wallet. Re-staging overwrites the previous candidate.
	StagePendingWallet(ctx context.Context, username, wallet string) error

	// SaveRegistrationSignature persists the verified register-flow proof.
	SaveRegistrationSignature(ctx context.Context, username, signature, messageHash string) error

	// SaveOldWalletSignature persists the verified old-wallet proof.
	SaveOldWalletSignature(ctx context.Context, username, signature, messageHash string) error

	// CompleteChange atomically promotes the pending wallet to current,
	// clears the staged value and records the new-wallet proof.
	CompleteChange(ctx context.Context, username, signature, messageHash string) error

	AddProof(ctx context.Context, proof *models.ProofRecord) error
	HasProof(ctx context.Context, telegramID int64) (bool, error)
}

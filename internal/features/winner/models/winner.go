package models

import "time"

// WinnerRecord is the whitelist entry for one contest username. The wallet
// flows keep all of their progress on this row, so a half-finished flow
// survives process restarts.
type WinnerRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"uniqueIndex;size:64;not null"`

	TelegramID *int64 `gorm:"index"`
	Rank       *int
	XP         *int

	Wallet           *string `gorm:"size:42"`
	PendingNewWallet *string `gorm:"size:42"`

	WvcCode *string `gorm:"size:64"`
	WvcUsed bool    `gorm:"not null;default:false"`

	// Audit trail of verified signatures; informational only.
	OldWalletSignature      *string `gorm:"size:132"`
	OldWalletMessageHash    *string `gorm:"size:66"`
	NewWalletSignature      *string `gorm:"size:132"`
	NewWalletMessageHash    *string `gorm:"size:66"`
	RegistrationSignature   *string `gorm:"size:132"`
	RegistrationMessageHash *string `gorm:"size:66"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasWallet reports whether a current wallet is registered.
func (w *WinnerRecord) HasWallet() bool {
	return w.Wallet != nil && *w.Wallet != ""
}

// NeedsWVC reports whether a validation code is assigned and not yet consumed.
func (w *WinnerRecord) NeedsWVC() bool {
	return w.WvcCode != nil && *w.WvcCode != "" && !w.WvcUsed
}

// ProofRecord is one screenshot submission. The log is append-only; rows are
// never updated or deleted.
type ProofRecord struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID int64  `gorm:"index;not null"`
	FileID     string `gorm:"size:128"`
	FileHash   string `gorm:"size:64"`
	CreatedAt  time.Time
}

// WinnerPatch is a field-masked update: nil fields are left untouched by an
// upsert, non-nil fields overwrite.
type WinnerPatch struct {
	TelegramID *int64
	Rank       *int
	XP         *int
	Wallet     *string
	WvcCode    *string
}

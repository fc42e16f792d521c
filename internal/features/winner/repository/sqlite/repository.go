// Package sqlite persists winner records in an embedded SQLite database.
// SQLite has a single writer, and every multi-step mutation here runs inside
// a transaction, which gives the per-username serialization the flows need.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository"
)

type Repository struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing gorm handle (tests pass :memory: here).
func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&models.WinnerRecord{}, &models.ProofRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Repository{db: db}, nil
}

func key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.WinnerRecord, error) {
	var rec models.WinnerRecord
	err := r.db.WithContext(ctx).First(&rec, "username = ?", key(username)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.WinnerRecord, error) {
	var rec models.WinnerRecord
	err := r.db.WithContext(ctx).First(&rec, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]models.WinnerRecord, error) {
	var recs []models.WinnerRecord
	if err := r.db.WithContext(ctx).Order("username").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *Repository) Upsert(ctx context.Context, username string, patch models.WinnerPatch) error {
	u := key(username)
	if u == "" {
		return fmt.Errorf("empty username")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.WinnerRecord
		err := tx.First(&rec, "username = ?", u).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = models.WinnerRecord{Username: u}
		case err != nil:
			return err
		}
		if patch.TelegramID != nil {
			rec.TelegramID = patch.TelegramID
		}
		if patch.Rank != nil {
			rec.Rank = patch.Rank
		}
		if patch.XP != nil {
			rec.XP = patch.XP
		}
		if patch.Wallet != nil {
			rec.Wallet = patch.Wallet
		}
		if patch.WvcCode != nil {
			rec.WvcCode = patch.WvcCode
		}
		return tx.Save(&rec).Error
	})
}

func (r *Repository) LinkTelegram(ctx context.Context, username string, telegramID int64) error {
	res := r.db.WithContext(ctx).Model(&models.WinnerRecord{}).
		Where("username = ?", key(username)).
		Update("telegram_id", telegramID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repository) MarkWvcUsed(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.WinnerRecord
		if err := tx.First(&rec, "username = ?", key(username)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}
		if rec.WvcUsed {
			return repository.ErrWvcAlreadyUsed
		}
		return tx.Model(&rec).Update("wvc_used", true).Error
	})
}

func (r *Repository) SetWallet(ctx context.Context, username, wallet string) error {
	return r.updateExisting(ctx, username, map[string]interface{}{"wallet": wallet})
}

func (r *Repository) StagePendingWallet(ctx context.Context, username, wallet string) error {
	return r.updateExisting(ctx, username, map[string]interface{}{"pending_new_wallet": wallet})
}

func (r *Repository) SaveRegistrationSignature(ctx context.Context, username, signature, messageHash string) error {
	return r.updateExisting(ctx, username, map[string]interface{}{
		"registration_signature":    signature,
		"registration_message_hash": messageHash,
	})
}

func (r *Repository) SaveOldWalletSignature(ctx context.Context, username, signature, messageHash string) error {
	return r.updateExisting(ctx, username, map[string]interface{}{
		"old_wallet_signature":    signature,
		"old_wallet_message_hash": messageHash,
	})
}

func (r *Repository) CompleteChange(ctx context.Context, username, signature, messageHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.WinnerRecord
		if err := tx.First(&rec, "username = ?", key(username)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}
		if rec.PendingNewWallet == nil || *rec.PendingNewWallet == "" {
			return repository.ErrNoPendingWallet
		}
		return tx.Model(&rec).Updates(map[string]interface{}{
			"wallet":                  *rec.PendingNewWallet,
			"pending_new_wallet":      nil,
			"new_wallet_signature":    signature,
			"new_wallet_message_hash": messageHash,
		}).Error
	})
}

func (r *Repository) AddProof(ctx context.Context, proof *models.ProofRecord) error {
	return r.db.WithContext(ctx).Create(proof).Error
}

func (r *Repository) HasProof(ctx context.Context, telegramID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProofRecord{}).
		Where("telegram_id = ?", telegramID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) updateExisting(ctx context.Context, username string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.WinnerRecord{}).
		Where("username = ?", key(username)).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

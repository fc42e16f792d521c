// Package rediscache decorates the winner repository with a read-through
// Redis cache for status lookups. Writes go straight to the inner store and
// invalidate every key that could still serve the record, so a stale wallet
// or a revoked Telegram link is never shown after a flow step completes.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository"
)

type Cache struct {
	inner  repository.Repository
	client *redis.Client
	ttl    time.Duration
}

func New(inner repository.Repository, client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{inner: inner, client: client, ttl: ttl}
}

func keyByUsername(username string) string {
	return "winner:username:" + strings.ToLower(strings.TrimSpace(username))
}

func keyByTelegramID(id int64) string {
	return fmt.Sprintf("winner:tg:%d", id)
}

func (c *Cache) GetByUsername(ctx context.Context, username string) (*models.WinnerRecord, error) {
	if rec := c.lookup(ctx, keyByUsername(username)); rec != nil {
		return rec, nil
	}
	rec, err := c.inner.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	c.store(ctx, rec)
	return rec, nil
}

func (c *Cache) GetByTelegramID(ctx context.Context, telegramID int64) (*models.WinnerRecord, error) {
	if rec := c.lookup(ctx, keyByTelegramID(telegramID)); rec != nil {
		return rec, nil
	}
	rec, err := c.inner.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, rec)
	return rec, nil
}

func (c *Cache) ListAll(ctx context.Context) ([]models.WinnerRecord, error) {
	return c.inner.ListAll(ctx)
}

func (c *Cache) Upsert(ctx context.Context, username string, patch models.WinnerPatch) error {
	prev := c.peek(ctx, username)
	err := c.inner.Upsert(ctx, username, patch)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) LinkTelegram(ctx context.Context, username string, telegramID int64) error {
	prev := c.peek(ctx, username)
	err := c.inner.LinkTelegram(ctx, username, telegramID)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) MarkWvcUsed(ctx context.Context, username string) error {
	prev := c.peek(ctx, username)
	err := c.inner.MarkWvcUsed(ctx, username)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) SetWallet(ctx context.Context, username, wallet string) error {
	prev := c.peek(ctx, username)
	err := c.inner.SetWallet(ctx, username, wallet)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) StagePendingWallet(ctx context.Context, username, wallet string) error {
	prev := c.peek(ctx, username)
	err := c.inner.StagePendingWallet(ctx, username, wallet)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) SaveRegistrationSignature(ctx context.Context, username, signature, messageHash string) error {
	prev := c.peek(ctx, username)
	err := c.inner.SaveRegistrationSignature(ctx, username, signature, messageHash)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) SaveOldWalletSignature(ctx context.Context, username, signature, messageHash string) error {
	prev := c.peek(ctx, username)
	err := c.inner.SaveOldWalletSignature(ctx, username, signature, messageHash)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) CompleteChange(ctx context.Context, username, signature, messageHash string) error {
	prev := c.peek(ctx, username)
	err := c.inner.CompleteChange(ctx, username, signature, messageHash)
	c.invalidate(ctx, username, prev)
	return err
}

func (c *Cache) AddProof(ctx context.Context, proof *models.ProofRecord) error {
	return c.inner.AddProof(ctx, proof)
}

func (c *Cache) HasProof(ctx context.Context, telegramID int64) (bool, error) {
	return c.inner.HasProof(ctx, telegramID)
}

func (c *Cache) lookup(ctx context.Context, key string) *models.WinnerRecord {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Str("key", key).Msg("winner cache read failed")
		}
		return nil
	}
	var rec models.WinnerRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil
	}
	return &rec
}

func (c *Cache) store(ctx context.Context, rec *models.WinnerRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyByUsername(rec.Username), b, c.ttl).Err(); err != nil {
		logger.Warn().Err(err).Msg("winner cache write failed")
		return
	}
	if rec.TelegramID != nil {
		_ = c.client.Set(ctx, keyByTelegramID(*rec.TelegramID), b, c.ttl).Err()
	}
}

// peek reads the record as it is before a write, straight from the inner
// store. Best-effort: nil when the record does not exist yet.
func (c *Cache) peek(ctx context.Context, username string) *models.WinnerRecord {
	rec, err := c.inner.GetByUsername(ctx, username)
	if err != nil {
		return nil
	}
	return rec
}

// invalidate drops every key that could still serve the record: the username
// key, the telegram key it had before the write and the one it has after. A
// write that moves a username to a different Telegram account must clear the
// old account's key, or the revoked account keeps hitting the cache until the
// TTL runs out.
func (c *Cache) invalidate(ctx context.Context, username string, prev *models.WinnerRecord) {
	keys := []string{keyByUsername(username)}
	if prev != nil && prev.TelegramID != nil {
		keys = append(keys, keyByTelegramID(*prev.TelegramID))
	}
	if rec, err := c.inner.GetByUsername(ctx, username); err == nil && rec.TelegramID != nil {
		keys = append(keys, keyByTelegramID(*rec.TelegramID))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("winner cache invalidate failed")
	}
}

var _ repository.Repository = (*Cache)(nil)

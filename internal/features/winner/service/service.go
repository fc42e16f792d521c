package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// WinnerService owns identity operations: linking Telegram accounts to
// whitelisted usernames, status lookups, WVC validation and the proof log.
type WinnerService interface {
	Link(ctx context.Context, telegramID int64, username string) (*models.WinnerRecord, error)
	Status(ctx context.Context, telegramID int64) (*models.WinnerRecord, error)
	Lookup(ctx context.Context, username string) (*models.WinnerRecord, error)
	UseWVC(ctx context.Context, telegramID int64, code string) error
	RecordProof(ctx context.Context, telegramID int64, fileID string, content []byte) (string, error)
	HasProof(ctx context.Context, telegramID int64) (bool, error)
	AdminLink(ctx context.Context, username string, telegramID int64) error
	Export(ctx context.Context) ([]models.WinnerRecord, error)
}

type winnerService struct {
	repo repository.Repository
}

func New(repo repository.Repository) WinnerService {
	return &winnerService{repo: repo}
}

// Link binds the Telegram account to an existing whitelist entry. Unknown
// usernames are rejected; the whitelist only grows through CSV import.
func (s *winnerService) Link(ctx context.Context, telegramID int64, username string) (*models.WinnerRecord, error) {
	u := strings.TrimSpace(username)
	if !usernameRe.MatchString(u) {
		return nil, ErrInvalidUsernameFormat
	}
	if err := s.repo.LinkTelegram(ctx, u, telegramID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotWhitelisted
		}
		return nil, err
	}
	return s.repo.GetByUsername(ctx, u)
}

func (s *winnerService) Status(ctx context.Context, telegramID int64) (*models.WinnerRecord, error) {
	rec, err := s.repo.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotWhitelisted
	}
	return rec, err
}

func (s *winnerService) Lookup(ctx context.Context, username string) (*models.WinnerRecord, error) {
	rec, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotWhitelisted
	}
	return rec, err
}

// UseWVC consumes the one-time validation code. The used flag only ever
// moves false->true; a second call fails regardless of the code supplied.
func (s *winnerService) UseWVC(ctx context.Context, telegramID int64, code string) error {
	rec, err := s.Status(ctx, telegramID)
	if err != nil {
		return err
	}
	if rec.WvcCode == nil || *rec.WvcCode == "" {
		return ErrNoWvcAssigned
	}
	if rec.WvcUsed {
		return ErrWvcAlreadyUsed
	}
	// Codes are opaque and case-sensitive.
	if code != *rec.WvcCode {
		return ErrWvcInvalid
	}
	if err := s.repo.MarkWvcUsed(ctx, rec.Username); err != nil {
		if errors.Is(err, repository.ErrWvcAlreadyUsed) {
			return ErrWvcAlreadyUsed
		}
		return err
	}
	return nil
}

// RecordProof appends a screenshot to the evidence log and returns its
// SHA-256 content hash.
func (s *winnerService) RecordProof(ctx context.Context, telegramID int64, fileID string, content []byte) (string, error) {
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])
	proof := &models.ProofRecord{
		TelegramID: telegramID,
		FileID:     fileID,
		FileHash:   digest,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.AddProof(ctx, proof); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *winnerService) HasProof(ctx context.Context, telegramID int64) (bool, error) {
	return s.repo.HasProof(ctx, telegramID)
}

func (s *winnerService) AdminLink(ctx context.Context, username string, telegramID int64) error {
	if err := s.repo.LinkTelegram(ctx, username, telegramID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotWhitelisted
		}
		return err
	}
	return nil
}

func (s *winnerService) Export(ctx context.Context) ([]models.WinnerRecord, error) {
	return s.repo.ListAll(ctx)
}

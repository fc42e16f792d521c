// Package service runs the admin review queue for wallet changes submitted
// without a signature flow. Approval is what actually moves the wallet: the
// identity store is only touched after an admin decision.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/request/models"
	"rewards-bot-backend/internal/features/request/repository"
	winnerrepo "rewards-bot-backend/internal/features/winner/repository"
	"rewards-bot-backend/internal/platform/ethsign"
)

var (
	// ErrInvalidWalletFormat is returned when the submitted wallet does not
	// survive cleaning.
	ErrInvalidWalletFormat = errors.New("invalid wallet format")
	// ErrNotWhitelisted is returned when the submitter has no winner record.
	ErrNotWhitelisted = errors.New("user not whitelisted")
	// ErrWalletApplyFailed is returned when a request was recorded as approved
	// but the wallet write that follows failed. The request stays approved; a
	// retry of the decision gets ErrAlreadyHandled, so the wallet has to be
	// fixed by hand.
	ErrWalletApplyFailed = errors.New("approved but wallet apply failed")
)

// Caps keep chat output and exports bounded.
const (
	listCap   = 30
	exportCap = 100
)

type Service struct {
	requests repository.Repository
	winners  winnerrepo.Repository
}

func New(requests repository.Repository, winners winnerrepo.Repository) *Service {
	return &Service{requests: requests, winners: winners}
}

// Submit queues a wallet change for review. The submitter must already be
// linked to a winner record; the old wallet is captured for the admin view.
func (s *Service) Submit(ctx context.Context, telegramID int64, newWallet string) (*models.WalletUpdateRequest, error) {
	rec, err := s.winners.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, winnerrepo.ErrNotFound) {
			return nil, ErrNotWhitelisted
		}
		return nil, err
	}
	wallet := ethsign.CleanWallet(newWallet)
	if wallet == "" {
		return nil, ErrInvalidWalletFormat
	}
	req := &models.WalletUpdateRequest{
		TelegramID: telegramID,
		Username:   rec.Username,
		NewWallet:  wallet,
	}
	if rec.Wallet != nil {
		req.OldWallet = *rec.Wallet
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	logger.Info().Int("request_id", req.ID).Str("username", req.Username).Msg("wallet update request queued")
	return req, nil
}

// Decide resolves a pending request. Exactly one admin decision wins; the
// wallet is written only on approval, after the request is marked, so a
// raced decision can never double-apply.
func (s *Service) Decide(ctx context.Context, id int, approve bool, decidedBy int64) (*models.WalletUpdateRequest, error) {
	status := models.StatusRejected
	if approve {
		status = models.StatusApproved
	}
	req, err := s.requests.Decide(ctx, id, status, decidedBy)
	if err != nil {
		return nil, err
	}
	if approve {
		if err := s.winners.SetWallet(ctx, req.Username, req.NewWallet); err != nil {
			// The decision is already recorded; surface the partial state so
			// the caller can tell it apart from a failed decision.
			logger.Error().Err(err).Int("request_id", req.ID).Str("username", req.Username).
				Msg("approved wallet apply failed")
			return req, fmt.Errorf("%w: %s: %v", ErrWalletApplyFailed, req.Username, err)
		}
	}
	logger.Info().
		Int("request_id", req.ID).
		Str("status", string(req.Status)).
		Int64("decided_by", decidedBy).
		Msg("wallet update request decided")
	return req, nil
}

// Get returns a single request for the details view.
func (s *Service) Get(ctx context.Context, id int) (*models.WalletUpdateRequest, error) {
	return s.requests.Get(ctx, id)
}

// ListPending returns the newest pending requests, capped for chat display.
func (s *Service) ListPending(ctx context.Context) ([]models.WalletUpdateRequest, error) {
	return s.requests.List(ctx, models.StatusPending, listCap)
}

// ListRecent returns the newest requests of any status, capped for chat
// display.
func (s *Service) ListRecent(ctx context.Context) ([]models.WalletUpdateRequest, error) {
	return s.requests.ListAll(ctx, listCap)
}

// ExportCSV renders the newest requests as a CSV document for admins.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	requests, err := s.requests.ListAll(ctx, exportCap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "username", "telegram_id", "old_wallet", "new_wallet", "status", "created_at", "decided_at"}); err != nil {
		return nil, err
	}
	for _, req := range requests {
		decidedAt := ""
		if req.DecidedAt != nil {
			decidedAt = req.DecidedAt.Format("2006-01-02 15:04:05")
		}
		row := []string{
			strconv.Itoa(req.ID),
			req.Username,
			strconv.FormatInt(req.TelegramID, 10),
			req.OldWallet,
			req.NewWallet,
			string(req.Status),
			req.CreatedAt.Format("2006-01-02 15:04:05"),
			decidedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

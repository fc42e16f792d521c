package repository

import (
	"context"
	"errors"

	"rewards-bot-backend/internal/features/request/models"
)

var (
	// ErrNotFound is returned when no request has the given id.
	ErrNotFound = errors.New("request not found")
	// ErrAlreadyHandled is returned by Decide on a non-pending request.
	ErrAlreadyHandled = errors.New("request already handled")
)

// Repository owns WalletUpdateRequest persistence. Decide must be atomic:
// when two admins race on the same request exactly one decision wins and the
// loser gets ErrAlreadyHandled.
type Repository interface {
	// Create assigns the next id and stores the request as pending.
	Create(ctx context.Context, req *models.WalletUpdateRequest) error

	Get(ctx context.Context, id int) (*models.WalletUpdateRequest, error)

	// List returns requests with the given status, newest first, capped at
	// limit (0 means no cap).
	List(ctx context.Context, status models.Status, limit int) ([]models.WalletUpdateRequest, error)

	ListAll(ctx context.Context, limit int) ([]models.WalletUpdateRequest, error)

	// Decide transitions pending -> status and stamps the decider.
	Decide(ctx context.Context, id int, status models.Status, decidedBy int64) (*models.WalletUpdateRequest, error)
}

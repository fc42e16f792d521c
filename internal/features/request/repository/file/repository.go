// Package file stores wallet update requests in a single JSON file. The file
// format is a plain array so admins can inspect or fix the queue with a text
// editor. The whole queue is held in memory behind a mutex and rewritten
// atomically (temp file + rename) on every mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"rewards-bot-backend/internal/features/request/models"
	"rewards-bot-backend/internal/features/request/repository"
)

type Repository struct {
	mu       sync.Mutex
	path     string
	requests []models.WalletUpdateRequest
	now      func() time.Time
}

// Open loads the queue at path, creating an empty one when the file does not
// exist yet.
func Open(path string) (*Repository, error) {
	r := &Repository{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read requests file: %w", err)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.requests); err != nil {
		return nil, fmt.Errorf("parse requests file %s: %w", path, err)
	}
	return r, nil
}

func (r *Repository) Create(ctx context.Context, req *models.WalletUpdateRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxID := 0
	for _, q := range r.requests {
		if q.ID > maxID {
			maxID = q.ID
		}
	}
	req.ID = maxID + 1
	req.Status = models.StatusPending
	req.CreatedAt = r.now().UTC()
	r.requests = append(r.requests, *req)
	return r.persist()
}

func (r *Repository) Get(ctx context.Context, id int) (*models.WalletUpdateRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.requests {
		if r.requests[i].ID == id {
			req := r.requests[i]
			return &req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Repository) List(ctx context.Context, status models.Status, limit int) ([]models.WalletUpdateRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(q *models.WalletUpdateRequest) bool { return q.Status == status }, limit), nil
}

func (r *Repository) ListAll(ctx context.Context, limit int) ([]models.WalletUpdateRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(*models.WalletUpdateRequest) bool { return true }, limit), nil
}

func (r *Repository) Decide(ctx context.Context, id int, status models.Status, decidedBy int64) (*models.WalletUpdateRequest, error) {
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, fmt.Errorf("invalid decision status %q", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.requests {
		if r.requests[i].ID != id {
			continue
		}
		if r.requests[i].Status != models.StatusPending {
			return nil, repository.ErrAlreadyHandled
		}
		decidedAt := r.now().UTC()
		r.requests[i].Status = status
		r.requests[i].DecidedAt = &decidedAt
		r.requests[i].DecidedBy = decidedBy
		if err := r.persist(); err != nil {
			return nil, err
		}
		req := r.requests[i]
		return &req, nil
	}
	return nil, repository.ErrNotFound
}

// filter copies matching requests newest-first. Callers hold the mutex.
func (r *Repository) filter(keep func(*models.WalletUpdateRequest) bool, limit int) []models.WalletUpdateRequest {
	var out []models.WalletUpdateRequest
	for i := range r.requests {
		if keep(&r.requests[i]) {
			out = append(out, r.requests[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Repository) persist() error {
	data, err := json.MarshalIndent(r.requests, "", "  ")
	if err != nil {
		return fmt.Errorf("encode requests: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create requests dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".requests-*.json")
	if err != nil {
		return fmt.Errorf("create temp requests file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write requests file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close requests file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace requests file: %w", err)
	}
	return nil
}

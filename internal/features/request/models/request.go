package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the review state of a wallet update request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// WalletUpdateRequest is one queued wallet change awaiting admin review. IDs
// are small sequential integers so admins can reference them in chat.
type WalletUpdateRequest struct {
	ID         int        `json:"id"`
	TelegramID int64      `json:"telegram_id"`
	Username   string     `json:"username"`
	OldWallet  string     `json:"old_wallet,omitempty"`
	NewWallet  string     `json:"new_wallet"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	DecidedBy  int64      `json:"decided_by,omitempty"`
}

// Pending reports whether the request still awaits a decision.
func (r *WalletUpdateRequest) Pending() bool { return r.Status == StatusPending }

// Action is an inline-keyboard verb on a request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionDetails Action = "details"
)

// ErrBadCallback is returned for callback data this feature does not own.
var ErrBadCallback = errors.New("not a request callback")

const callbackPrefix = "req"

// CallbackData encodes an action button payload, e.g. "req:approve:12".
func CallbackData(action Action, id int) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, action, id)
}

// ParseCallbackData decodes an inline button payload produced by CallbackData.
func ParseCallbackData(data string) (Action, int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return "", 0, ErrBadCallback
	}
	action := Action(parts[1])
	switch action {
	case ActionApprove, ActionReject, ActionDetails:
	default:
		return "", 0, ErrBadCallback
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil || id <= 0 {
		return "", 0, ErrBadCallback
	}
	return action, id, nil
}

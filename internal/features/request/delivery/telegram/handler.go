// Package telegram renders the review queue: the simple /update_wallet path
// for users and the list/export/decide surface for admins.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/request/models"
	"rewards-bot-backend/internal/features/request/repository"
	"rewards-bot-backend/internal/features/request/service"
	tg "rewards-bot-backend/internal/platform/telegram"
)

// Sender is the slice of the bot client this handler needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *tg.SendOptions) (*tg.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *tg.SendOptions) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error
}

type Handler struct {
	sender       Sender
	requests     *service.Service
	adminGroupID int64
	adminIDs     []int64
}

func NewHandler(sender Sender, requests *service.Service, adminGroupID int64, adminIDs []int64) *Handler {
	return &Handler{sender: sender, requests: requests, adminGroupID: adminGroupID, adminIDs: adminIDs}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, chatID, text, nil); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

// UpdateWallet queues a wallet change for admin review and pings the admin
// group with decision buttons.
func (h *Handler) UpdateWallet(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /update_wallet <0x wallet address>")
		return
	}
	req, err := h.requests.Submit(ctx, msg.From.ID, args)
	switch {
	case errors.Is(err, service.ErrNotWhitelisted):
		h.reply(ctx, msg.Chat.ID, "Your Telegram account is not linked yet.\nUse /set_username <your Zealy username> first.")
		return
	case errors.Is(err, service.ErrInvalidWalletFormat):
		h.reply(ctx, msg.Chat.ID, "That doesn't look like a valid wallet address.\nExpected format: 0x followed by 40 hex characters.")
		return
	case err != nil:
		logger.Error().Err(err).Msg("update_wallet failed")
		h.reply(ctx, msg.Chat.ID, "Something went wrong. Please try again later.")
		return
	}
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf(
		"Request #%d submitted. An admin will review it; you'll keep your current wallet until it is approved.", req.ID))
	h.notifyAdmins(ctx, req)
}

// notifyAdmins delivers the decision prompt to the admin group, or DMs every
// configured admin when no group is set, so a request never goes unreviewed.
func (h *Handler) notifyAdmins(ctx context.Context, req *models.WalletUpdateRequest) {
	markup := &tg.InlineKeyboardMarkup{
		InlineKeyboard: [][]tg.InlineKeyboardButton{{
			{Text: "Approve", CallbackData: models.CallbackData(models.ActionApprove, req.ID)},
			{Text: "Reject", CallbackData: models.CallbackData(models.ActionReject, req.ID)},
			{Text: "Details", CallbackData: models.CallbackData(models.ActionDetails, req.ID)},
		}},
	}
	text := fmt.Sprintf("Wallet update request #%d\nUser: %s (%d)\nOld: %s\nNew: %s",
		req.ID, req.Username, req.TelegramID, orDash(req.OldWallet), req.NewWallet)
	opts := &tg.SendOptions{ReplyMarkup: markup}
	if h.adminGroupID != 0 {
		if _, err := h.sender.SendMessage(ctx, h.adminGroupID, text, opts); err != nil {
			logger.Warn().Err(err).Int("request_id", req.ID).Msg("admin notify failed")
		}
		return
	}
	if len(h.adminIDs) == 0 {
		logger.Warn().Int("request_id", req.ID).Msg("no admin group or admin ids configured, request not announced")
		return
	}
	for _, adminID := range h.adminIDs {
		if _, err := h.sender.SendMessage(ctx, adminID, text, opts); err != nil {
			logger.Warn().Err(err).Int("request_id", req.ID).Int64("admin_id", adminID).Msg("admin notify failed")
		}
	}
}

// AdminList prints pending requests, or all recent ones with "all".
func (h *Handler) AdminList(ctx context.Context, msg *tg.Message, args string) {
	var (
		requests []models.WalletUpdateRequest
		err      error
	)
	if strings.EqualFold(strings.TrimSpace(args), "all") {
		requests, err = h.requests.ListRecent(ctx)
	} else {
		requests, err = h.requests.ListPending(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Msg("admin_list failed")
		h.reply(ctx, msg.Chat.ID, "Something went wrong. Please try again later.")
		return
	}
	if len(requests) == 0 {
		h.reply(ctx, msg.Chat.ID, "No requests.")
		return
	}
	var b strings.Builder
	for _, req := range requests {
		fmt.Fprintf(&b, "#%d %s %s -> %s [%s]\n",
			req.ID, req.Username, orDash(req.OldWallet), req.NewWallet, req.Status)
	}
	h.reply(ctx, msg.Chat.ID, strings.TrimRight(b.String(), "\n"))
}

// AdminExport sends the queue as a CSV document.
func (h *Handler) AdminExport(ctx context.Context, msg *tg.Message) {
	content, err := h.requests.ExportCSV(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("admin_export failed")
		h.reply(ctx, msg.Chat.ID, "Something went wrong. Please try again later.")
		return
	}
	name := fmt.Sprintf("wallet_requests_%s.csv", time.Now().Format("20060102_150405"))
	if err := h.sender.SendDocument(ctx, msg.Chat.ID, name, content, ""); err != nil {
		logger.Error().Err(err).Msg("admin_export send failed")
		h.reply(ctx, msg.Chat.ID, "Something went wrong. Please try again later.")
	}
}

// Callback resolves an inline decision button. Returns false when the data
// does not belong to this feature.
func (h *Handler) Callback(ctx context.Context, cb *tg.CallbackQuery, isAdmin bool) bool {
	action, id, err := models.ParseCallbackData(cb.Data)
	if err != nil {
		return false
	}
	if !isAdmin {
		h.answer(ctx, cb.ID, "Admins only.")
		return true
	}
	switch action {
	case models.ActionDetails:
		h.details(ctx, cb, id)
	case models.ActionApprove, models.ActionReject:
		h.decide(ctx, cb, id, action == models.ActionApprove)
	}
	return true
}

func (h *Handler) details(ctx context.Context, cb *tg.CallbackQuery, id int) {
	req, err := h.requests.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		h.answer(ctx, cb.ID, fmt.Sprintf("Request #%d not found.", id))
		return
	}
	if err != nil {
		logger.Error().Err(err).Int("request_id", id).Msg("details failed")
		h.answer(ctx, cb.ID, "Lookup failed.")
		return
	}
	h.answer(ctx, cb.ID, "")
	if cb.Message != nil {
		h.reply(ctx, cb.Message.Chat.ID, detailsText(req))
	}
}

func (h *Handler) decide(ctx context.Context, cb *tg.CallbackQuery, id int, approve bool) {
	req, err := h.requests.Decide(ctx, id, approve, cb.From.ID)
	switch {
	case errors.Is(err, repository.ErrAlreadyHandled):
		h.answer(ctx, cb.ID, fmt.Sprintf("Request #%d was already handled.", id))
		return
	case errors.Is(err, repository.ErrNotFound):
		h.answer(ctx, cb.ID, fmt.Sprintf("Request #%d not found.", id))
		return
	case errors.Is(err, service.ErrWalletApplyFailed):
		// The request is approved on disk but the wallet write failed, so the
		// decision must not read as retryable.
		h.answer(ctx, cb.ID, fmt.Sprintf(
			"Request #%d approved, but writing the wallet failed. Check /admin_show %s and set it manually.",
			id, req.Username))
		if cb.Message != nil {
			text := fmt.Sprintf("Wallet update request #%d\nUser: %s (%d)\nOld: %s\nNew: %s\n\nAPPROVED by %s (wallet write FAILED, needs manual follow-up)",
				req.ID, req.Username, req.TelegramID, orDash(req.OldWallet), req.NewWallet, adminName(&cb.From))
			if err := h.sender.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, nil); err != nil {
				logger.Warn().Err(err).Int("request_id", id).Msg("edit decision message failed")
			}
		}
		return
	case err != nil:
		logger.Error().Err(err).Int("request_id", id).Msg("decide failed")
		h.answer(ctx, cb.ID, "Decision failed, check logs.")
		return
	}
	h.answer(ctx, cb.ID, fmt.Sprintf("Request #%d %s.", id, req.Status))
	// Replace the buttons with the outcome so a second admin sees it settled.
	if cb.Message != nil {
		text := fmt.Sprintf("Wallet update request #%d\nUser: %s (%d)\nOld: %s\nNew: %s\n\n%s by %s",
			req.ID, req.Username, req.TelegramID, orDash(req.OldWallet), req.NewWallet,
			strings.ToUpper(string(req.Status)), adminName(&cb.From))
		if err := h.sender.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, nil); err != nil {
			logger.Warn().Err(err).Int("request_id", id).Msg("edit decision message failed")
		}
	}
	h.notifyUser(ctx, req)
}

func (h *Handler) notifyUser(ctx context.Context, req *models.WalletUpdateRequest) {
	var text string
	if req.Status == models.StatusApproved {
		text = fmt.Sprintf("Your wallet update request #%d was approved.\nNew wallet: %s", req.ID, req.NewWallet)
	} else {
		text = fmt.Sprintf("Your wallet update request #%d was rejected. Your current wallet is unchanged.", req.ID)
	}
	h.reply(ctx, req.TelegramID, text)
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	if err := h.sender.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		logger.Warn().Err(err).Msg("answer callback failed")
	}
}

func detailsText(req *models.WalletUpdateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request #%d\n", req.ID)
	fmt.Fprintf(&b, "User: %s (%d)\n", req.Username, req.TelegramID)
	fmt.Fprintf(&b, "Old wallet: %s\n", orDash(req.OldWallet))
	fmt.Fprintf(&b, "New wallet: %s\n", req.NewWallet)
	fmt.Fprintf(&b, "Status: %s\n", req.Status)
	fmt.Fprintf(&b, "Created: %s", req.CreatedAt.Format("2006-01-02 15:04:05"))
	if req.DecidedAt != nil {
		fmt.Fprintf(&b, "\nDecided: %s by %d", req.DecidedAt.Format("2006-01-02 15:04:05"), req.DecidedBy)
	}
	return b.String()
}

func adminName(u *tg.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

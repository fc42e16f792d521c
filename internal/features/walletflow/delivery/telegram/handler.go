// Package telegram renders the signed register and change flows as bot
// commands. Every handler maps one command to one flow step and translates
// the service's sentinel errors into user-facing text.
package telegram

import (
	"context"
	"errors"
	"fmt"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/walletflow/service"
	tg "rewards-bot-backend/internal/platform/telegram"
)

// Sender is the slice of the bot client this handler needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *tg.SendOptions) (*tg.Message, error)
}

type Handler struct {
	sender Sender
	flows  *service.Service
}

func NewHandler(sender Sender, flows *service.Service) *Handler {
	return &Handler{sender: sender, flows: flows}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, chatID, text, nil); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

// flowError maps the shared guard errors; returns false when err needs
// step-specific handling.
func (h *Handler) flowError(ctx context.Context, chatID int64, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, service.ErrDeadlinePassed):
		h.reply(ctx, chatID, fmt.Sprintf("The wallet deadline (%s) has passed. Wallet changes are closed.",
			h.flows.Deadline().Format("02-01-2006")))
	case errors.Is(err, service.ErrNotWhitelisted):
		h.reply(ctx, chatID, "Your Telegram account is not linked yet.\nUse /set_username <your Zealy username> first.")
	case errors.Is(err, service.ErrWvcRequired):
		h.reply(ctx, chatID, "You need to validate your code first: /use_wvc <code>.")
	case errors.Is(err, service.ErrProofRequired):
		h.reply(ctx, chatID, "Please send your ownership screenshot first (see /proof).")
	default:
		return false
	}
	return true
}

// AddWallet opens the register flow and prints the step guide.
func (h *Handler) AddWallet(ctx context.Context, msg *tg.Message) {
	rec, err := h.flows.StartRegistration(ctx, msg.From.ID)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("add_wallet failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	text := registerGuideText
	if rec.NeedsWVC() {
		text += "\n\nNote: your validation code is still pending. Submit it with /use_wvc <code> before step 1."
	}
	if rec.HasWallet() {
		text += fmt.Sprintf("\n\nYou already have a wallet on file (%s). Running these steps again replaces it.", *rec.Wallet)
	}
	h.reply(ctx, msg.Chat.ID, text)
}

// ChangeWallet opens the signed change flow and prints the step guide.
func (h *Handler) ChangeWallet(ctx context.Context, msg *tg.Message) {
	rec, err := h.flows.StartChange(ctx, msg.From.ID)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	if errors.Is(err, service.ErrNoExistingWallet) {
		h.reply(ctx, msg.Chat.ID, "You have no registered wallet to change. Use /add_wallet first.")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("change_wallet failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	text := changeGuideText + "\n\n" + service.ChangeOldMessage(rec.Username, *rec.Wallet)
	if rec.NeedsWVC() {
		text += "\n\nNote: your validation code is still pending. Submit it with /use_wvc <code> before step 1."
	}
	h.reply(ctx, msg.Chat.ID, text)
}

// SetWallet is register step 1.
func (h *Handler) SetWallet(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /set_wallet <0x wallet address>")
		return
	}
	rec, err := h.flows.SetWallet(ctx, msg.From.ID, args)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	if errors.Is(err, service.ErrInvalidWalletFormat) {
		h.reply(ctx, msg.Chat.ID, invalidWalletText)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("set_wallet failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf(
		"Wallet saved: %s\n\nNow sign this exact message with that wallet and submit the result with /reg_sig <signature>:\n\n%s",
		*rec.Wallet, service.RegistrationMessage(rec.Username, *rec.Wallet)))
}

// RegSig is register step 2.
func (h *Handler) RegSig(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /reg_sig <signature>")
		return
	}
	_, rec, err := h.flows.SubmitRegistrationSignature(ctx, msg.From.ID, args)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrOutOfOrder):
		h.reply(ctx, msg.Chat.ID, "Set your wallet first with /set_wallet <address>.")
	case errors.Is(err, service.ErrInvalidSignature):
		h.reply(ctx, msg.Chat.ID, invalidSignatureText)
	case err != nil:
		logger.Error().Err(err).Msg("reg_sig failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"Signature verified. Wallet %s is now registered for %s.", *rec.Wallet, rec.Username))
	}
}

// OldSig is change step 1.
func (h *Handler) OldSig(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /old_sig <signature>")
		return
	}
	_, rec, err := h.flows.SubmitOldSignature(ctx, msg.From.ID, args)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrNoExistingWallet):
		h.reply(ctx, msg.Chat.ID, "You have no registered wallet to change. Use /add_wallet first.")
	case errors.Is(err, service.ErrInvalidSignature):
		h.reply(ctx, msg.Chat.ID, invalidSignatureText)
	case err != nil:
		logger.Error().Err(err).Msg("old_sig failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"Old wallet verified (%s).\nNow submit the new address with /new_wallet <address>.", *rec.Wallet))
	}
}

// NewWallet is change step 2.
func (h *Handler) NewWallet(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /new_wallet <0x wallet address>")
		return
	}
	rec, err := h.flows.StageNewWallet(ctx, msg.From.ID, args)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrNoExistingWallet):
		h.reply(ctx, msg.Chat.ID, "You have no registered wallet to change. Use /add_wallet first.")
	case errors.Is(err, service.ErrInvalidWalletFormat):
		h.reply(ctx, msg.Chat.ID, invalidWalletText)
	case err != nil:
		logger.Error().Err(err).Msg("new_wallet failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"New wallet staged: %s\n\nFinal step: sign this exact message with the NEW wallet and submit it with /new_sig <signature>:\n\n%s",
			*rec.PendingNewWallet,
			service.ChangeNewMessage(rec.Username, *rec.Wallet, *rec.PendingNewWallet)))
	}
}

// NewSig is change step 3, the atomic swap.
func (h *Handler) NewSig(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /new_sig <signature>")
		return
	}
	res, err := h.flows.SubmitNewSignature(ctx, msg.From.ID, args)
	if h.flowError(ctx, msg.Chat.ID, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrOutOfOrder):
		h.reply(ctx, msg.Chat.ID, "Complete the previous steps first: /old_sig, then /new_wallet.")
	case errors.Is(err, service.ErrInvalidSignature):
		h.reply(ctx, msg.Chat.ID, invalidSignatureText+"\nMake sure you signed with the NEW wallet.")
	case err != nil:
		logger.Error().Err(err).Msg("new_sig failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"Done. Your wallet has been changed.\nOld: %s\nNew: %s", res.OldWallet, res.NewWallet))
	}
}

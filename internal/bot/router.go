// Package bot wires the feature handlers into one update router for the
// long-poll loop.
package bot

import (
	"context"

	"rewards-bot-backend/internal/common/config"
	"rewards-bot-backend/internal/common/logger"
	requesttg "rewards-bot-backend/internal/features/request/delivery/telegram"
	walletflowtg "rewards-bot-backend/internal/features/walletflow/delivery/telegram"
	winnertg "rewards-bot-backend/internal/features/winner/delivery/telegram"
	tg "rewards-bot-backend/internal/platform/telegram"
)

type Router struct {
	cfg        *config.Config
	winners    *winnertg.Handler
	walletflow *walletflowtg.Handler
	requests   *requesttg.Handler
}

func NewRouter(cfg *config.Config, winners *winnertg.Handler, walletflow *walletflowtg.Handler, requests *requesttg.Handler) *Router {
	return &Router{cfg: cfg, winners: winners, walletflow: walletflow, requests: requests}
}

var _ tg.Handler = (*Router)(nil)

func (r *Router) HandleCommand(ctx context.Context, msg *tg.Message, command, args string) {
	logger.Debug().Str("command", command).Int64("from", msg.From.ID).Msg("command received")
	switch command {
	case "start":
		r.winners.Start(ctx, msg)
	case "help":
		r.winners.Help(ctx, msg)
	case "set_username":
		r.winners.SetUsername(ctx, msg, args)
	case "status":
		r.winners.Status(ctx, msg)
	case "show_wvc":
		r.winners.ShowWVC(ctx, msg)
	case "use_wvc":
		r.winners.UseWVC(ctx, msg, args)
	case "proof":
		r.winners.ProofGuide(ctx, msg)
	case "add_wallet":
		r.walletflow.AddWallet(ctx, msg)
	case "change_wallet":
		r.walletflow.ChangeWallet(ctx, msg)
	case "set_wallet":
		r.walletflow.SetWallet(ctx, msg, args)
	case "reg_sig":
		r.walletflow.RegSig(ctx, msg, args)
	case "old_sig":
		r.walletflow.OldSig(ctx, msg, args)
	case "new_wallet":
		r.walletflow.NewWallet(ctx, msg, args)
	case "new_sig":
		r.walletflow.NewSig(ctx, msg, args)
	case "update_wallet":
		r.requests.UpdateWallet(ctx, msg, args)

	// Admin commands are silently ignored for everyone else, so probing
	// them leaks nothing.
	case "admin_show":
		if r.isAdmin(msg.From.ID) {
			r.winners.AdminShow(ctx, msg, args)
		}
	case "admin_link":
		if r.isAdmin(msg.From.ID) {
			r.winners.AdminLink(ctx, msg, args)
		}
	case "admin_import_winners":
		if r.isAdmin(msg.From.ID) {
			r.winners.AdminImportGuide(ctx, msg)
		}
	case "admin_list":
		if r.isAdmin(msg.From.ID) {
			r.requests.AdminList(ctx, msg, args)
		}
	case "admin_export":
		if r.isAdmin(msg.From.ID) {
			r.requests.AdminExport(ctx, msg)
		}
	case "admin_export_winners":
		if r.isAdmin(msg.From.ID) {
			r.winners.AdminExportWinners(ctx, msg)
		}
	default:
		r.winners.Help(ctx, msg)
	}
}

func (r *Router) HandleText(ctx context.Context, msg *tg.Message) {
	// Bare text is almost always a mistyped command or a pasted value
	// without its command prefix.
	r.winners.Help(ctx, msg)
}

func (r *Router) HandlePhoto(ctx context.Context, msg *tg.Message) {
	r.winners.Photo(ctx, msg)
}

func (r *Router) HandleDocument(ctx context.Context, msg *tg.Message) {
	// The only document the bot accepts is the admin CSV import, sent with
	// the import command as caption.
	if !r.isAdmin(msg.From.ID) {
		return
	}
	if command, _, ok := tg.ParseCommand(msg.Caption); ok && command == "admin_import_winners" {
		r.winners.AdminImportDocument(ctx, msg)
	}
}

func (r *Router) HandleCallback(ctx context.Context, cb *tg.CallbackQuery) {
	if r.requests.Callback(ctx, cb, r.isAdmin(cb.From.ID)) {
		return
	}
	logger.Debug().Str("data", cb.Data).Msg("unhandled callback")
}

func (r *Router) isAdmin(telegramID int64) bool {
	return r.cfg.IsAdmin(telegramID)
}

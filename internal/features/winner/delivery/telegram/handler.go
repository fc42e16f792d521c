// Package telegram renders the identity commands for the bot: linking,
// status, WVC validation, proof screenshots and the admin whitelist tools.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/winner/importer"
	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository"
	"rewards-bot-backend/internal/features/winner/service"
	tg "rewards-bot-backend/internal/platform/telegram"
)

// Sender is the slice of the bot client this handler needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *tg.SendOptions) (*tg.Message, error)
	SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error
	GetFile(ctx context.Context, fileID string) (*tg.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}

type Handler struct {
	sender  Sender
	winners service.WinnerService
	repo    repository.Repository
	index   *importer.Index
}

func NewHandler(sender Sender, winners service.WinnerService, repo repository.Repository, index *importer.Index) *Handler {
	return &Handler{sender: sender, winners: winners, repo: repo, index: index}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, chatID, text, nil); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

func (h *Handler) Start(ctx context.Context, msg *tg.Message) {
	h.reply(ctx, msg.Chat.ID, startText)
}

func (h *Handler) Help(ctx context.Context, msg *tg.Message) {
	h.reply(ctx, msg.Chat.ID, helpText)
}

// SetUsername links the sender's Telegram account to a whitelisted username.
func (h *Handler) SetUsername(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /set_username <your Zealy username>")
		return
	}
	rec, err := h.winners.Link(ctx, msg.From.ID, args)
	switch {
	case errors.Is(err, service.ErrInvalidUsernameFormat):
		h.reply(ctx, msg.Chat.ID, "That username doesn't look right. Use 3-32 letters, digits, dots, dashes or underscores.")
	case errors.Is(err, service.ErrNotWhitelisted):
		h.reply(ctx, msg.Chat.ID, "This username is not on the winner list. Check the spelling or contact an admin.")
	case err != nil:
		logger.Error().Err(err).Msg("link failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Linked! You are registered as %s.\nUse /status to see your record.", rec.Username))
	}
}

// Status shows the sender's record: identity, wallet state, gates.
func (h *Handler) Status(ctx context.Context, msg *tg.Message) {
	rec, err := h.winners.Status(ctx, msg.From.ID)
	if errors.Is(err, service.ErrNotWhitelisted) {
		h.reply(ctx, msg.Chat.ID, notLinkedText)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("status failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	hasProof, err := h.winners.HasProof(ctx, msg.From.ID)
	if err != nil {
		logger.Error().Err(err).Msg("proof lookup failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	h.reply(ctx, msg.Chat.ID, statusText(rec, hasProof))
}

// ShowWVC tells the user whether a validation code is pending for them. The
// code itself is distributed out of band and never echoed back.
func (h *Handler) ShowWVC(ctx context.Context, msg *tg.Message) {
	rec, err := h.winners.Status(ctx, msg.From.ID)
	if errors.Is(err, service.ErrNotWhitelisted) {
		h.reply(ctx, msg.Chat.ID, notLinkedText)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("wvc lookup failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	switch {
	case rec.WvcCode == nil || *rec.WvcCode == "":
		h.reply(ctx, msg.Chat.ID, "No validation code is assigned to your account.")
	case rec.WvcUsed:
		h.reply(ctx, msg.Chat.ID, "Your validation code has already been used. You're all set.")
	default:
		h.reply(ctx, msg.Chat.ID, "A validation code is assigned to you and still unused.\nSubmit it with /use_wvc <code>.")
	}
}

// UseWVC consumes the one-time validation code.
func (h *Handler) UseWVC(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /use_wvc <code>")
		return
	}
	err := h.winners.UseWVC(ctx, msg.From.ID, strings.TrimSpace(args))
	switch {
	case errors.Is(err, service.ErrNotWhitelisted):
		h.reply(ctx, msg.Chat.ID, notLinkedText)
	case errors.Is(err, service.ErrNoWvcAssigned):
		h.reply(ctx, msg.Chat.ID, "No validation code is assigned to your account.")
	case errors.Is(err, service.ErrWvcAlreadyUsed):
		h.reply(ctx, msg.Chat.ID, "This code has already been used.")
	case errors.Is(err, service.ErrWvcInvalid):
		h.reply(ctx, msg.Chat.ID, "That code doesn't match. Codes are case-sensitive.")
	case err != nil:
		logger.Error().Err(err).Msg("use_wvc failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, "Code accepted. You can now continue with your wallet steps.")
	}
}

// ProofGuide explains how to submit ownership proof.
func (h *Handler) ProofGuide(ctx context.Context, msg *tg.Message) {
	h.reply(ctx, msg.Chat.ID, proofGuideText)
}

// Photo records an incoming screenshot as proof. The largest size variant is
// downloaded and content-hashed for the evidence log.
func (h *Handler) Photo(ctx context.Context, msg *tg.Message) {
	if _, err := h.winners.Status(ctx, msg.From.ID); errors.Is(err, service.ErrNotWhitelisted) {
		h.reply(ctx, msg.Chat.ID, notLinkedText)
		return
	}
	photo := msg.Photo[len(msg.Photo)-1]
	file, err := h.sender.GetFile(ctx, photo.FileID)
	if err != nil {
		logger.Error().Err(err).Msg("proof getFile failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	content, err := h.sender.DownloadFile(ctx, file.FilePath)
	if err != nil {
		logger.Error().Err(err).Msg("proof download failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	digest, err := h.winners.RecordProof(ctx, msg.From.ID, photo.FileID, content)
	if err != nil {
		logger.Error().Err(err).Msg("proof record failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	logger.Info().Int64("telegram_id", msg.From.ID).Str("hash", digest).Msg("proof recorded")
	h.reply(ctx, msg.Chat.ID, "Screenshot received and recorded. You can continue with your wallet steps.")
}

// AdminShow prints one winner record in full.
func (h *Handler) AdminShow(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		h.reply(ctx, msg.Chat.ID, "Usage: /admin_show <username>")
		return
	}
	rec, err := h.winners.Lookup(ctx, args)
	if errors.Is(err, service.ErrNotWhitelisted) {
		h.reply(ctx, msg.Chat.ID, "No record for that username.")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("admin_show failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	h.reply(ctx, msg.Chat.ID, adminRecordText(rec))
}

// AdminLink force-binds a username to a Telegram id.
func (h *Handler) AdminLink(ctx context.Context, msg *tg.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		h.reply(ctx, msg.Chat.ID, "Usage: /admin_link <username> <telegram_id>")
		return
	}
	telegramID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "telegram_id must be a number.")
		return
	}
	err = h.winners.AdminLink(ctx, fields[0], telegramID)
	switch {
	case errors.Is(err, service.ErrNotWhitelisted):
		h.reply(ctx, msg.Chat.ID, "No record for that username.")
	case err != nil:
		logger.Error().Err(err).Msg("admin_link failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Linked %s to %d.", strings.ToLower(fields[0]), telegramID))
	}
}

// AdminImportGuide explains how to run an import.
func (h *Handler) AdminImportGuide(ctx context.Context, msg *tg.Message) {
	h.reply(ctx, msg.Chat.ID, "Send the winner list as a CSV document with /admin_import_winners as the caption.")
}

// AdminImportDocument ingests a CSV winner list sent as a document with the
// import command as its caption.
func (h *Handler) AdminImportDocument(ctx context.Context, msg *tg.Message) {
	file, err := h.sender.GetFile(ctx, msg.Document.FileID)
	if err != nil {
		logger.Error().Err(err).Msg("import getFile failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	content, err := h.sender.DownloadFile(ctx, file.FilePath)
	if err != nil {
		logger.Error().Err(err).Msg("import download failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	rows, err := importer.Parse(strings.NewReader(string(content)), importer.Options{})
	switch {
	case errors.Is(err, importer.ErrNoHeader):
		h.reply(ctx, msg.Chat.ID, "That file has no header row. Export the list as CSV and try again.")
		return
	case errors.Is(err, importer.ErrNoUsernameColumn):
		h.reply(ctx, msg.Chat.ID, "No username column found in the header.")
		return
	case err != nil:
		logger.Error().Err(err).Msg("import parse failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	imported, err := importer.ImportInto(ctx, h.repo, rows)
	if err != nil {
		logger.Error().Err(err).Msg("import failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	if h.index != nil {
		h.index.Replace(rows)
	}
	logger.Info().Int("imported", imported).Int("parsed", len(rows)).Msg("winner list imported")
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Imported %d of %d rows.", imported, len(rows)))
}

// AdminExportWinners sends the whole winner table as a CSV document.
func (h *Handler) AdminExportWinners(ctx context.Context, msg *tg.Message) {
	records, err := h.winners.Export(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("winner export failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
		return
	}
	content := exportCSV(records)
	name := fmt.Sprintf("winners_%s.csv", time.Now().Format("20060102_150405"))
	if err := h.sender.SendDocument(ctx, msg.Chat.ID, name, content, fmt.Sprintf("%d records", len(records))); err != nil {
		logger.Error().Err(err).Msg("winner export send failed")
		h.reply(ctx, msg.Chat.ID, somethingWrongText)
	}
}

func exportCSV(records []models.WinnerRecord) []byte {
	var b strings.Builder
	b.WriteString("username,telegram_id,rank,xp,wallet,wvc_used\n")
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	for _, rec := range records {
		telegramID := ""
		if rec.TelegramID != nil {
			telegramID = strconv.FormatInt(*rec.TelegramID, 10)
		}
		rank, xp := "", ""
		if rec.Rank != nil {
			rank = strconv.Itoa(*rec.Rank)
		}
		if rec.XP != nil {
			xp = strconv.Itoa(*rec.XP)
		}
		b.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%t\n",
			rec.Username, telegramID, rank, xp, str(rec.Wallet), rec.WvcUsed))
	}
	return []byte(b.String())
}

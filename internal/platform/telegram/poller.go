package telegram

import (
	"context"
	"strings"
	"time"

	"rewards-bot-backend/internal/common/logger"
)

// Handler receives dispatched updates. Implementations must be safe for
// sequential reuse; the poller processes updates one at a time so flow steps
// from the same user stay ordered.
type Handler interface {
	HandleCommand(ctx context.Context, msg *Message, command, args string)
	HandleText(ctx context.Context, msg *Message)
	HandlePhoto(ctx context.Context, msg *Message)
	HandleDocument(ctx context.Context, msg *Message)
	HandleCallback(ctx context.Context, cb *CallbackQuery)
}

// Poller drives getUpdates and dispatches to a Handler.
type Poller struct {
	client  *Client
	handler Handler
	timeout int
	offset  int64
}

func NewPoller(client *Client, handler Handler) *Poller {
	return &Poller{client: client, handler: handler, timeout: 50}
}

// Run polls until ctx is cancelled. Poll errors back off and retry; a
// panicking handler is recovered so one bad update cannot kill the loop.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info().Msg("telegram poller started")
	for {
		updates, err := p.client.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).Msg("getUpdates failed, backing off")
			select {
			case <-time.After(3 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for i := range updates {
			update := &updates[i]
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}
			p.dispatch(ctx, update)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update *Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Int64("update_id", update.UpdateID).Msg("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		p.handler.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.IsBot {
			return
		}
		if len(msg.Photo) > 0 {
			p.handler.HandlePhoto(ctx, msg)
			return
		}
		if msg.Document != nil {
			p.handler.HandleDocument(ctx, msg)
			return
		}
		if command, args, ok := ParseCommand(msg.Text); ok {
			p.handler.HandleCommand(ctx, msg, command, args)
			return
		}
		if strings.TrimSpace(msg.Text) != "" {
			p.handler.HandleText(ctx, msg)
		}
	}
}

// ParseCommand splits "/cmd@BotName arg rest" into ("cmd", "arg rest").
func ParseCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return "", "", false
	}
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

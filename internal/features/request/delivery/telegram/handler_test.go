package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rewards-bot-backend/internal/features/request/models"
	filerepo "rewards-bot-backend/internal/features/request/repository/file"
	"rewards-bot-backend/internal/features/request/service"
	winnermodels "rewards-bot-backend/internal/features/winner/models"
	winnerrepo "rewards-bot-backend/internal/features/winner/repository"
	winnersqlite "rewards-bot-backend/internal/features/winner/repository/sqlite"
	tg "rewards-bot-backend/internal/platform/telegram"
)

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *tg.SendOptions
}

type captureSender struct {
	sent    []sentMessage
	answers []string
	edits   []string
}

func (c *captureSender) SendMessage(ctx context.Context, chatID int64, text string, opts *tg.SendOptions) (*tg.Message, error) {
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text, opts: opts})
	return &tg.Message{MessageID: int64(len(c.sent))}, nil
}

func (c *captureSender) EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *tg.SendOptions) error {
	c.edits = append(c.edits, text)
	return nil
}

func (c *captureSender) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	c.answers = append(c.answers, text)
	return nil
}

func (c *captureSender) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error {
	return nil
}

func (c *captureSender) sentTo() []int64 {
	ids := make([]int64, 0, len(c.sent))
	for _, m := range c.sent {
		ids = append(ids, m.chatID)
	}
	return ids
}

func newQueue(t *testing.T, winners winnerrepo.Repository) *service.Service {
	t.Helper()
	requests, err := filerepo.Open(filepath.Join(t.TempDir(), "requests.json"))
	require.NoError(t, err)
	return service.New(requests, winners)
}

func seedWinner(t *testing.T, winners *winnersqlite.Repository, username string, telegramID int64, wallet string) {
	t.Helper()
	patch := winnermodels.WinnerPatch{TelegramID: &telegramID}
	if wallet != "" {
		patch.Wallet = &wallet
	}
	require.NoError(t, winners.Upsert(context.Background(), username, patch))
}

func TestUpdateWalletNotifiesEachAdminWithoutGroup(t *testing.T) {
	ctx := context.Background()
	winners, err := winnersqlite.Open(":memory:")
	require.NoError(t, err)
	seedWinner(t, winners, "alice", 100, walletA)
	sender := &captureSender{}
	h := NewHandler(sender, newQueue(t, winners), 0, []int64{7, 8})

	msg := &tg.Message{Chat: tg.Chat{ID: 100}, From: &tg.User{ID: 100}}
	h.UpdateWallet(ctx, msg, walletB)

	// Confirmation to the submitter, then one prompt per admin.
	require.Equal(t, []int64{100, 7, 8}, sender.sentTo())
	for _, m := range sender.sent[1:] {
		require.NotNil(t, m.opts)
		require.NotNil(t, m.opts.ReplyMarkup)
		require.Contains(t, m.text, "alice")
		require.Contains(t, m.text, walletB)
	}
}

func TestUpdateWalletPrefersAdminGroup(t *testing.T) {
	ctx := context.Background()
	winners, err := winnersqlite.Open(":memory:")
	require.NoError(t, err)
	seedWinner(t, winners, "alice", 100, walletA)
	sender := &captureSender{}
	h := NewHandler(sender, newQueue(t, winners), 555, []int64{7, 8})

	msg := &tg.Message{Chat: tg.Chat{ID: 100}, From: &tg.User{ID: 100}}
	h.UpdateWallet(ctx, msg, walletB)

	require.Equal(t, []int64{100, 555}, sender.sentTo())
}

// failingWallet breaks the wallet write that follows an approval.
type failingWallet struct {
	*winnersqlite.Repository
}

func (f *failingWallet) SetWallet(ctx context.Context, username, wallet string) error {
	return errors.New("disk full")
}

func TestDecideCallbackReportsWalletApplyFailure(t *testing.T) {
	ctx := context.Background()
	winners, err := winnersqlite.Open(":memory:")
	require.NoError(t, err)
	seedWinner(t, winners, "alice", 100, walletA)
	queue := newQueue(t, &failingWallet{winners})
	sender := &captureSender{}
	h := NewHandler(sender, queue, 555, nil)

	req, err := queue.Submit(ctx, 100, walletB)
	require.NoError(t, err)

	cb := &tg.CallbackQuery{
		ID:      "cb-1",
		From:    tg.User{ID: 42, Username: "root"},
		Data:    models.CallbackData(models.ActionApprove, req.ID),
		Message: &tg.Message{MessageID: 9, Chat: tg.Chat{ID: 555}},
	}
	require.True(t, h.Callback(ctx, cb, true))

	// The admin sees the partial state, not a generic failure.
	require.Len(t, sender.answers, 1)
	require.Contains(t, sender.answers[0], "approved")
	require.Contains(t, sender.answers[0], "failed")
	require.NotEqual(t, "Decision failed, check logs.", sender.answers[0])
	require.Len(t, sender.edits, 1)
	require.Contains(t, sender.edits[0], "FAILED")

	// No success notification goes to the user.
	require.Empty(t, sender.sent)
}

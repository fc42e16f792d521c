package bot

import (
	"context"
	"fmt"

	tg "rewards-bot-backend/internal/platform/telegram"
)

// AdminNotifier posts verified flow events to the admin group. A zero group
// id disables it.
type AdminNotifier struct {
	client  *tg.Client
	groupID int64
}

func NewAdminNotifier(client *tg.Client, groupID int64) *AdminNotifier {
	return &AdminNotifier{client: client, groupID: groupID}
}

func (n *AdminNotifier) NotifyRegistration(ctx context.Context, username string, telegramID int64, wallet, signature, messageHash string) error {
	if n.groupID == 0 {
		return nil
	}
	text := fmt.Sprintf("Wallet registered\nUser: %s (%d)\nWallet: %s\nSignature: %s\nMessage hash: %s",
		username, telegramID, wallet, signature, messageHash)
	_, err := n.client.SendMessage(ctx, n.groupID, text, nil)
	return err
}

func (n *AdminNotifier) NotifyChange(ctx context.Context, username string, telegramID int64, oldWallet, newWallet, signature, messageHash string) error {
	if n.groupID == 0 {
		return nil
	}
	text := fmt.Sprintf("Wallet change step verified\nUser: %s (%d)\nOld: %s\nNew: %s\nSignature: %s\nMessage hash: %s",
		username, telegramID, oldWallet, newWallet, signature, messageHash)
	_, err := n.client.SendMessage(ctx, n.groupID, text, nil)
	return err
}

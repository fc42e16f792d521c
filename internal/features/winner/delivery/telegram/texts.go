package telegram

import (
	"fmt"
	"strings"

	"rewards-bot-backend/internal/features/winner/models"
)

const startText = `Welcome to the rewards wallet bot.

This bot links your contest username to your Telegram account and manages
the wallet your rewards will be sent to.

First step: /set_username <your Zealy username>
Then: /status to see your record, /help for all commands.`

const helpText = `Commands:
/set_username <name> - link your contest username
/status - show your record
/show_wvc - check your validation code state
/use_wvc <code> - submit your validation code
/add_wallet - start wallet registration
/change_wallet - start a signed wallet change
/update_wallet <wallet> - request a wallet change for admin review
/proof - how to submit your ownership screenshot

Send a screenshot as a photo to record it as proof.`

const notLinkedText = `Your Telegram account is not linked yet.
Use /set_username <your Zealy username> first.`

const somethingWrongText = "Something went wrong. Please try again later."

const proofGuideText = `To prove wallet ownership, send a screenshot (as a photo)
of your wallet showing the address you are registering.

The screenshot is stored with a content hash for the audit log.`

func statusText(rec *models.WinnerRecord, hasProof bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Username: %s\n", rec.Username)
	if rec.Rank != nil {
		fmt.Fprintf(&b, "Rank: %d\n", *rec.Rank)
	}
	if rec.XP != nil {
		fmt.Fprintf(&b, "XP: %d\n", *rec.XP)
	}
	if rec.HasWallet() {
		fmt.Fprintf(&b, "Wallet: %s\n", *rec.Wallet)
	} else {
		b.WriteString("Wallet: not registered\n")
	}
	if rec.PendingNewWallet != nil && *rec.PendingNewWallet != "" {
		fmt.Fprintf(&b, "Pending new wallet: %s\n", *rec.PendingNewWallet)
	}
	switch {
	case rec.NeedsWVC():
		b.WriteString("Validation code: required (use /use_wvc)\n")
	case rec.WvcCode != nil && *rec.WvcCode != "":
		b.WriteString("Validation code: used\n")
	}
	if hasProof {
		b.WriteString("Ownership proof: recorded\n")
	} else {
		b.WriteString("Ownership proof: missing (see /proof)\n")
	}
	if rec.RegistrationSignature != nil {
		b.WriteString("Registration signature: recorded\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func adminRecordText(rec *models.WinnerRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "username: %s\n", rec.Username)
	if rec.TelegramID != nil {
		fmt.Fprintf(&b, "telegram_id: %d\n", *rec.TelegramID)
	}
	if rec.Rank != nil {
		fmt.Fprintf(&b, "rank: %d\n", *rec.Rank)
	}
	if rec.XP != nil {
		fmt.Fprintf(&b, "xp: %d\n", *rec.XP)
	}
	if rec.Wallet != nil {
		fmt.Fprintf(&b, "wallet: %s\n", *rec.Wallet)
	}
	if rec.PendingNewWallet != nil {
		fmt.Fprintf(&b, "pending_new_wallet: %s\n", *rec.PendingNewWallet)
	}
	if rec.WvcCode != nil && *rec.WvcCode != "" {
		fmt.Fprintf(&b, "wvc_used: %t\n", rec.WvcUsed)
	}
	if rec.RegistrationSignature != nil {
		fmt.Fprintf(&b, "registration_signature: %s\n", *rec.RegistrationSignature)
	}
	if rec.OldWalletSignature != nil {
		fmt.Fprintf(&b, "old_wallet_signature: %s\n", *rec.OldWalletSignature)
	}
	if rec.NewWalletSignature != nil {
		fmt.Fprintf(&b, "new_wallet_signature: %s\n", *rec.NewWalletSignature)
	}
	fmt.Fprintf(&b, "updated_at: %s", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

package service

import "fmt"

// The texts below are the exact strings users must sign. They are always
// rebuilt server-side from the stored record, never taken from client input,
// so a signature is only ever accepted over state the server knows about.
// Changing them invalidates every previously issued signature.

// RegistrationMessage is signed with the wallet being registered.
func RegistrationMessage(username, wallet string) string {
	return fmt.Sprintf(
		"Wallet registration — Zealy: %s — Wallet: %s\n"+
			"I declare that I request the registration of the wallet indicated above and release Savitri Network from any liability in case of my own mistake.",
		username, wallet)
}

// ChangeOldMessage is signed with the current (old) wallet.
func ChangeOldMessage(username, oldWallet string) string {
	return fmt.Sprintf("Wallet change request — Zealy: %s — Old: %s", username, oldWallet)
}

// ChangeNewMessage is signed with the new wallet, proving control of it.
func ChangeNewMessage(username, oldWallet, newWallet string) string {
	return fmt.Sprintf("Wallet change request — Zealy: %s — Old: %s — New: %s",
		username, oldWallet, newWallet)
}

// Package ethsign verifies EVM personal-message signatures off-chain. It is
// the only place that knows the wire format of addresses and signatures used
// by the contest (0x + 40 hex, 0x + 130 hex).
package ethsign

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressRe   = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	signatureRe = regexp.MustCompile(`^0x[a-fA-F0-9]{130}$`)
)

// ValidAddress reports whether s is a 20-byte hex address.
func ValidAddress(s string) bool { return addressRe.MatchString(s) }

// ValidSignature reports whether s is a 65-byte recoverable signature.
func ValidSignature(s string) bool { return signatureRe.MatchString(s) }

// CleanWallet normalizes a wallet candidate pasted from a spreadsheet or chat:
// strips NBSP, spaces, quotes and backticks, lowercases, then validates.
// Returns "" when the result is not a valid address.
func CleanWallet(v string) string {
	s := strings.ReplaceAll(v, "\u00a0", " ")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Trim(s, "`'\"")
	s = strings.ToLower(s)
	if !addressRe.MatchString(s) {
		return ""
	}
	return s
}

// personalHash applies the personal_sign preamble and Keccak-256, matching
// what wallet UIs (BscScan signature tool included) sign.
func personalHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// Verify recovers the signer of message from a personal_sign signature and
// compares it (case-insensitively) to expectedAddress. Any malformed input
// or recovery failure yields false; it never panics and never errors.
func Verify(expectedAddress, signature, message string) bool {
	if !addressRe.MatchString(expectedAddress) || !signatureRe.MatchString(signature) {
		return false
	}
	raw, err := hexutil.Decode(signature)
	if err != nil || len(raw) != crypto.SignatureLength {
		return false
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, raw)
	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false
	}
	pub, err := crypto.SigToPub(personalHash(message), sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), expectedAddress)
}

// MessageHash returns 0x + SHA-256 of the exact message text. It is an audit
// trace shown to admins, not part of the signature check.
func MessageHash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return "0x" + hex.EncodeToString(sum[:])
}

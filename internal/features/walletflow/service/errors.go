package service

import "errors"

// Business-rule failures surfaced to the user as specific messages. None of
// these cross the command boundary as a crash.
var (
	ErrDeadlinePassed      = errors.New("wallet deadline passed")
	ErrNotWhitelisted      = errors.New("user not whitelisted")
	ErrNoExistingWallet    = errors.New("no wallet registered")
	ErrWvcRequired         = errors.New("wvc validation required")
	ErrProofRequired       = errors.New("proof screenshot required")
	ErrInvalidWalletFormat = errors.New("invalid wallet format")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrOutOfOrder          = errors.New("previous flow step missing")
)

// Package common defines the sentinel errors shared by the derivation core,
// the session, the site store and the CLI. Callers should use errors.Is to
// match these values; lower layers wrap them with context.
package common

import "errors"

var (
	// Derivation errors.
	ErrInsecureContext     = errors.New("insecure execution context")
	ErrInsufficientEntropy = errors.New("insufficient entropy")
	ErrInvalidAlphabet     = errors.New("invalid alphabet")
	ErrInvalidLength       = errors.New("invalid length")
	ErrInvalidParams       = errors.New("invalid derivation parameters")
	ErrInvalidIdentity     = errors.New("invalid identity")
	ErrEmptyPassphrase     = errors.New("empty passphrase")

	// Worker errors.
	ErrWorkerFault = errors.New("derivation worker fault")

	// Session errors.
	ErrLockedSessionAccess = errors.New("session is locked")
	ErrSessionBusy         = errors.New("session is not locked")

	// Store errors.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrInvalidRecord    = errors.New("invalid site record")
)

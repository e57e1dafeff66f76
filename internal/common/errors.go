// Package common defines shared constants, helpers and sentinel errors used
// across the identity and payment layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Categories. Every specific error below unwraps to one or more of these,
	// so transports can map a whole class with a single errors.Is check.
	ErrorNotFound     = errors.New("not found")
	ErrorConflict     = errors.New("conflict")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorExpired      = errors.New("expired")
	ErrorEncryption   = errors.New("encryption failure")
	ErrorValidation   = errors.New("validation error")
	ErrorUnavailable  = errors.New("unavailable")
	ErrorInternal     = errors.New("internal error")

	// Accounts.
	ErrAccountNotFound    = newError("account not found", ErrorNotFound)
	ErrDuplicateAccount   = newError("account already exists", ErrorConflict)
	ErrInvalidCredentials = newError("invalid credentials", ErrorUnauthorized)
	ErrAccountNotActive   = newError("account is not active", ErrorUnauthorized)

	// Session tokens.
	ErrInvalidToken     = newError("invalid token", ErrorUnauthorized)
	ErrInvalidSignature = newError("invalid token signature", ErrorUnauthorized)
	ErrWrongTokenKind   = newError("wrong token kind", ErrorUnauthorized)
	ErrTokenExpired     = newError("token expired", ErrorUnauthorized, ErrorExpired)

	// Ephemeral (verification / reset) tokens.
	ErrTokenNotFound         = newError("token not found", ErrorNotFound)
	ErrEphemeralTokenExpired = newError("token has expired", ErrorExpired)

	// Payment vault.
	ErrCardNotFound      = newError("payment card not found", ErrorNotFound)
	ErrCardLimitReached  = newError("payment card limit reached", ErrorConflict)
	ErrEncryptionFailure = newError("card encryption failed", ErrorEncryption)

	ErrInvalidInput       = newError("invalid input", ErrorValidation)
	ErrNotificationFailed = newError("notification delivery failed", ErrorUnavailable)
)

// kindError is a sentinel that belongs to one or more categories.
type kindError struct {
	msg   string
	kinds []error
}

func newError(msg string, kinds ...error) error {
	return &kindError{msg: msg, kinds: kinds}
}

func (e *kindError) Error() string   { return e.msg }
func (e *kindError) Unwrap() []error { return e.kinds }

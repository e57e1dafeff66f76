// Package models contains the persistent entities of the identity and
// payment core.
package models

import "time"

// Role is an account's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// AccountStatus tracks an account's lifecycle: pending -> active, with
// disabled as a terminal administrative state.
type AccountStatus string

const (
	StatusPending  AccountStatus = "pending"
	StatusActive   AccountStatus = "active"
	StatusDisabled AccountStatus = "disabled"
)

// TokenKind selects one of the single-use tokens stored on an account.
type TokenKind string

const (
	TokenKindVerification  TokenKind = "verification"
	TokenKindPasswordReset TokenKind = "password_reset"
)

// Profile is the optional personal data collected at registration.
type Profile struct {
	FirstName       string
	LastName        string
	PhoneNumber     string
	PromotionsOptIn bool
}

// Account is a registered identity. Email is stored lower-cased and is
// unique case-insensitively. PasswordHash is always a bcrypt hash.
//
// The token fields hold SHA-256 digests of the outstanding single-use
// tokens, never the tokens themselves.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	Status       AccountStatus
	Profile      Profile

	VerificationToken          *string
	VerificationTokenExpiresAt *time.Time
	ResetToken                 *string
	ResetTokenExpiresAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account may log in.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// SetToken stores digest and expiry in the slot for kind, replacing any
// previous token of that kind.
func (a *Account) SetToken(kind TokenKind, digest string, expiresAt time.Time) {
	switch kind {
	case TokenKindVerification:
		a.VerificationToken, a.VerificationTokenExpiresAt = &digest, &expiresAt
	case TokenKindPasswordReset:
		a.ResetToken, a.ResetTokenExpiresAt = &digest, &expiresAt
	}
}

// ClearToken empties the slot for kind.
func (a *Account) ClearToken(kind TokenKind) {
	switch kind {
	case TokenKindVerification:
		a.VerificationToken, a.VerificationTokenExpiresAt = nil, nil
	case TokenKindPasswordReset:
		a.ResetToken, a.ResetTokenExpiresAt = nil, nil
	}
}

// TokenExpiresAt returns the expiry stored for kind, or nil.
func (a *Account) TokenExpiresAt(kind TokenKind) *time.Time {
	switch kind {
	case TokenKindVerification:
		return a.VerificationTokenExpiresAt
	case TokenKindPasswordReset:
		return a.ResetTokenExpiresAt
	}
	return nil
}

// Package auth issues and validates the signed, stateless session tokens
// (access and refresh) carried by clients after login.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// TokenKind tells access tokens from refresh tokens. A token is only ever
// accepted where its own kind is expected.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// ClaimsVersion is bumped whenever the claims layout changes; tokens of
// any other version are rejected.
const ClaimsVersion = 1

// Claims is the fixed payload of every session token. Subject holds the
// account email.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64       `json:"account_id"`
	Role      models.Role `json:"role"`
	Kind      TokenKind   `json:"token_kind"`
	// Extended marks "remember me" sessions.
	Extended bool `json:"ext,omitempty"`
	Version  int  `json:"ver"`
}

// Email returns the subject.
func (c *Claims) Email() string { return c.Subject }

// Package authn resolves the bearer token on an incoming request into a
// Principal. A missing or invalid token leaves the request anonymous;
// route level checks decide whether anonymous callers get through.
package authn

import (
	"context"
	"errors"
	"strings"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/auth"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// Authority is a permission granted to a principal.
type Authority string

const (
	AuthorityUser  Authority = "ROLE_USER"
	AuthorityAdmin Authority = "ROLE_ADMIN"
)

// AuthoritiesFor expands a role. Admins hold both authorities.
func AuthoritiesFor(role models.Role) []Authority {
	if role == models.RoleAdmin {
		return []Authority{AuthorityAdmin, AuthorityUser}
	}
	return []Authority{AuthorityUser}
}

// Principal is the authenticated caller.
type Principal struct {
	Subject     string
	AccountID   int64
	Role        models.Role
	Authorities []Authority
}

func (p Principal) Has(a Authority) bool {
	for _, have := range p.Authorities {
		if have == a {
			return true
		}
	}
	return false
}

// TokenValidator is satisfied by *auth.TokenService.
type TokenValidator interface {
	Validate(token string, kind auth.TokenKind) (*auth.Claims, error)
}

// RejectionRecorder counts refused tokens by reason.
type RejectionRecorder interface {
	TokenRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) TokenRejected(string) {}

type Authenticator struct {
	tokens   TokenValidator
	recorder RejectionRecorder
	logger   logging.Logger
}

// New builds an Authenticator. recorder may be nil.
func New(tokens TokenValidator, recorder RejectionRecorder, l logging.Logger) *Authenticator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Authenticator{tokens: tokens, recorder: recorder, logger: l.With("module", "authn")}
}

// Authenticate inspects an Authorization header value. It reports false
// for anonymous callers, including those presenting a bad token.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Principal, bool) {
	if header == "" {
		return Principal{}, false
	}
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		a.reject(ctx, "malformed_header")
		return Principal{}, false
	}

	claims, err := a.tokens.Validate(strings.TrimSpace(token), auth.KindAccess)
	if err != nil {
		a.reject(ctx, reason(err))
		return Principal{}, false
	}

	return Principal{
		Subject:     claims.Subject,
		AccountID:   claims.AccountID,
		Role:        claims.Role,
		Authorities: AuthoritiesFor(claims.Role),
	}, true
}

func (a *Authenticator) reject(ctx context.Context, why string) {
	a.logger.Warn(ctx, "bearer token rejected", "reason", why)
	a.recorder.TokenRejected(why)
}

func reason(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, common.ErrWrongTokenKind):
		return "wrong_kind"
	default:
		return "malformed"
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by the middleware or the
// gRPC interceptor.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

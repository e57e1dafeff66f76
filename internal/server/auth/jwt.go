package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/config"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService signs and verifies session tokens with HMAC-SHA256. It
// holds no per-token state, so any instance with the same secret can
// validate tokens issued by another.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL func(extended bool) time.Duration
	now        func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(cfg *config.Config, opts ...Option) (*TokenService, error) {
	if len(cfg.SecretKey) < config.MinSecretKeyLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", config.MinSecretKeyLength)
	}

	s := &TokenService{
		secret:     []byte(cfg.SecretKey),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidity,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueSessionPair mints an access and a refresh token for account. When
// extended is set the refresh token lives longer.
func (s *TokenService) IssueSessionPair(account *models.Account, extended bool) (*TokenPair, error) {
	base := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.Email},
		AccountID:        account.ID,
		Role:             account.Role,
		Extended:         extended,
	}

	access, accessExp, err := s.sign(base, KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(base, KindRefresh, s.refreshTTL(extended))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccessToken mints a fresh access token carrying the identity, role
// and remember-me flag of already validated claims.
func (s *TokenService) IssueAccessToken(from *Claims) (string, time.Time, error) {
	base := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: from.Subject},
		AccountID:        from.AccountID,
		Role:             from.Role,
		Extended:         from.Extended,
	}
	return s.sign(base, KindAccess, s.accessTTL)
}

func (s *TokenService) sign(c Claims, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)

	c.Kind = kind
	c.Version = ClaimsVersion
	c.Issuer = s.issuer
	c.ID = uuid.NewString()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Validate verifies the signature first and only then reads the claims.
// It fails with common.ErrInvalidSignature, common.ErrTokenExpired,
// common.ErrWrongTokenKind or common.ErrInvalidToken.
func (s *TokenService) Validate(token string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, common.ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
		}
	}

	if claims.Version != ClaimsVersion || claims.AccountID <= 0 || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, common.ErrWrongTokenKind
	}
	return claims, nil
}

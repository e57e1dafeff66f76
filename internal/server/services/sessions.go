package services

import (
	"context"
	"errors"
	"time"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/auth"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// SessionService turns verified credentials into session tokens.
//
// Refresh tokens are stateless: they are neither rotated nor revocable
// before expiry, and logout is purely client side.
type SessionService struct {
	accounts *AccountService
	tokens   *auth.TokenService
	logger   logging.Logger
}

func NewSessionService(a *AccountService, t *auth.TokenService, l logging.Logger) *SessionService {
	return &SessionService{accounts: a, tokens: t, logger: l.With("module", "session_service")}
}

// Login authenticates and issues a token pair. Unknown email and wrong
// password both fail with common.ErrInvalidCredentials. Only active
// accounts may log in.
func (s *SessionService) Login(ctx context.Context, email, rawPassword string, rememberMe bool) (*auth.TokenPair, *models.Account, error) {
	account, err := s.accounts.Authenticate(ctx, email, rawPassword)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) || errors.Is(err, common.ErrInvalidCredentials) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !account.IsActive() {
		return nil, nil, common.ErrAccountNotActive
	}

	pair, err := s.tokens.IssueSessionPair(account, rememberMe)
	if err != nil {
		s.logger.Error(ctx, "error issuing session pair", "account_id", account.ID, "error", err)
		return nil, nil, common.ErrorInternal
	}
	return pair, account, nil
}

// Refresh exchanges a valid refresh token for a new access token with the
// same role and remember-me flag. The account must still exist and be
// active.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokens.Validate(refreshToken, auth.KindRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	account, err := s.accounts.Get(ctx, claims.AccountID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !account.IsActive() {
		return "", time.Time{}, common.ErrAccountNotActive
	}

	token, exp, err := s.tokens.IssueAccessToken(claims)
	if err != nil {
		s.logger.Error(ctx, "error issuing access token", "account_id", account.ID, "error", err)
		return "", time.Time{}, common.ErrorInternal
	}
	return token, exp, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/cryptox"
	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/config"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/repomanager"
)

// tokenBytes is the entropy of a single-use token (256 bits).
const tokenBytes = 32

// EphemeralTokenService issues and redeems the single-use tokens mailed for
// email verification and password reset. An account holds at most one
// token of each kind; issuing a new one replaces the old.
type EphemeralTokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.PasswordHasher
	notifier    AccountNotifier
	ttl         map[models.TokenKind]time.Duration
	now         func() time.Time
	logger      logging.Logger
}

func NewEphemeralTokenService(db *sql.DB, m repomanager.RepositoryManager, h *cryptox.PasswordHasher, n AccountNotifier,
	cfg *config.Config, l logging.Logger, opts ...Option) *EphemeralTokenService {
	o := buildOptions(opts)
	return &EphemeralTokenService{
		db:          db,
		repomanager: m,
		hasher:      h,
		notifier:    n,
		ttl: map[models.TokenKind]time.Duration{
			models.TokenKindVerification:  cfg.VerificationTokenTTL,
			models.TokenKindPasswordReset: cfg.PasswordResetTokenTTL,
		},
		now:    o.now,
		logger: l.With("module", "ephemeral_tokens"),
	}
}

// Issue generates a token of the given kind for account, stores its digest
// with an expiry, and mails it. When delivery fails the token stays stored
// and common.ErrNotificationFailed is returned; issuing again replaces it.
func (s *EphemeralTokenService) Issue(ctx context.Context, account *models.Account, kind models.TokenKind) (string, error) {
	ttl, ok := s.ttl[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown token kind %q", common.ErrInvalidInput, kind)
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}

	var fresh *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)
		if err := repo.LockByID(ctx, account.ID); err != nil {
			return err
		}
		a, err := repo.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		a.SetToken(kind, cryptox.TokenDigest(token), s.now().Add(ttl))
		if err := repo.Update(ctx, a); err != nil {
			return err
		}
		fresh = a
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("error storing %s token: %w", kind, err)
	}

	switch kind {
	case models.TokenKindVerification:
		err = s.notifier.SendVerification(ctx, fresh, token, ttl)
	case models.TokenKindPasswordReset:
		err = s.notifier.SendPasswordReset(ctx, fresh, token, ttl)
	}
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "token issued", "kind", kind, "account_id", fresh.ID)
	return token, nil
}

// Redeem consumes a token. It fails with common.ErrTokenNotFound when no
// account holds it and common.ErrEphemeralTokenExpired once it has
// expired. Redeeming a verification token activates the account.
func (s *EphemeralTokenService) Redeem(ctx context.Context, token string, kind models.TokenKind) (*models.Account, error) {
	return s.redeem(ctx, token, kind, func(a *models.Account) error {
		if kind != models.TokenKindVerification {
			return nil
		}
		if a.Status == models.StatusDisabled {
			return common.ErrAccountNotActive
		}
		a.Status = models.StatusActive
		return nil
	})
}

// ResetPassword redeems a password reset token and stores the new password
// in the same transaction.
func (s *EphemeralTokenService) ResetPassword(ctx context.Context, token, newRawPassword string) (*models.Account, error) {
	hash, err := s.hasher.Hash(newRawPassword)
	if err != nil {
		return nil, err
	}

	account, err := s.redeem(ctx, token, models.TokenKindPasswordReset, func(a *models.Account) error {
		a.PasswordHash = hash
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "password reset", "account_id", account.ID)
	s.notifier.SendPasswordChanged(ctx, account)
	return account, nil
}

func (s *EphemeralTokenService) redeem(ctx context.Context, token string, kind models.TokenKind, mutate func(*models.Account) error) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrTokenNotFound
	}
	digest := cryptox.TokenDigest(token)

	var account *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.GetByTokenForUpdate(ctx, kind, digest)
		if err != nil {
			return err
		}

		exp := a.TokenExpiresAt(kind)
		if exp == nil || !s.now().Before(*exp) {
			return common.ErrEphemeralTokenExpired
		}

		a.ClearToken(kind)
		if err := mutate(a); err != nil {
			return err
		}
		if err := repo.Update(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ResendVerification issues a new verification token for a pending
// account. Unknown emails and accounts that are not pending are silently
// ignored so the endpoint does not reveal who is registered.
func (s *EphemeralTokenService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if account.Status != models.StatusPending {
		return nil
	}
	return s.issueUnattended(ctx, account, models.TokenKindVerification)
}

// RequestPasswordReset issues a reset token. Unknown and disabled accounts
// are silently ignored, and so is a failed delivery.
func (s *EphemeralTokenService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if account.Status == models.StatusDisabled {
		return nil
	}
	return s.issueUnattended(ctx, account, models.TokenKindPasswordReset)
}

// issueUnattended issues a token for a request made by email address
// alone. A failed delivery is logged and swallowed: the answer must be the
// same as for an unknown address.
func (s *EphemeralTokenService) issueUnattended(ctx context.Context, account *models.Account, kind models.TokenKind) error {
	_, err := s.Issue(ctx, account, kind)
	if errors.Is(err, common.ErrNotificationFailed) {
		s.logger.Warn(ctx, "token email not delivered", "kind", kind, "account_id", account.ID, "error", err)
		return nil
	}
	return err
}

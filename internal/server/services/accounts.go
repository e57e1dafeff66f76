package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/cryptox"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/repomanager"
)

// NormalizeEmail trims and lower-cases an email. Emails are compared and
// stored in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountService is the credential store.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.PasswordHasher
	notifier    AccountNotifier
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, h *cryptox.PasswordHasher, n AccountNotifier, l logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      h,
		notifier:    n,
		logger:      l.With("module", "account_service"),
	}
}

// Register creates a pending account with role user. It fails with
// common.ErrDuplicateAccount when the email is already taken, compared
// case-insensitively.
func (s *AccountService) Register(ctx context.Context, email, rawPassword string, profile models.Profile) (*models.Account, error) {
	account, err := s.create(ctx, email, rawPassword, models.RoleUser, models.StatusPending, profile)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account registered", "account_id", account.ID)

	if profile.PromotionsOptIn {
		s.notifier.SendPromotionsEnrollment(ctx, account)
	}
	return account, nil
}

// CreateAdmin creates an active account with role admin. Administrators are
// provisioned by an operator or another administrator, so they skip email
// verification.
func (s *AccountService) CreateAdmin(ctx context.Context, email, rawPassword string, profile models.Profile) (*models.Account, error) {
	account, err := s.create(ctx, email, rawPassword, models.RoleAdmin, models.StatusActive, profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "admin account created", "account_id", account.ID)
	return account, nil
}

// EnsureAdmin makes sure an administrator with the given email exists. It
// returns the existing account untouched when it is already an admin, and
// fails with common.ErrDuplicateAccount when the email belongs to a
// non-admin account; such accounts are never promoted.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, rawPassword string) (*models.Account, error) {
	email = NormalizeEmail(email)

	existing, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == models.RoleAdmin:
		return existing, nil
	case err == nil:
		return nil, fmt.Errorf("%w: %s is not an admin account", common.ErrDuplicateAccount, email)
	case !errors.Is(err, common.ErrAccountNotFound):
		return nil, fmt.Errorf("error looking up account: %w", err)
	}

	return s.CreateAdmin(ctx, email, rawPassword, models.Profile{})
}

func (s *AccountService) create(ctx context.Context, email, rawPassword string, role models.Role, status models.AccountStatus, profile models.Profile) (*models.Account, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is required", common.ErrInvalidInput)
	}

	repo := s.repomanager.Accounts(s.db)

	exists, err := repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if exists {
		return nil, common.ErrDuplicateAccount
	}

	hash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return nil, err
	}

	account, err := repo.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		Profile:      profile,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return account, nil
}

// Authenticate checks a password. It fails with common.ErrAccountNotFound
// for unknown emails and common.ErrInvalidCredentials for a wrong
// password; both paths cost one bcrypt comparison. Status is not checked.
func (s *AccountService) Authenticate(ctx context.Context, email, rawPassword string) (*models.Account, error) {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			s.hasher.CompareDummy(rawPassword)
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error looking up account: %w", err)
	}

	if err := s.hasher.Compare(account.PasswordHash, rawPassword); err != nil {
		return nil, err
	}
	return account, nil
}

// ChangePassword replaces the password hash. Any outstanding reset token is
// dropped along with the old password.
func (s *AccountService) ChangePassword(ctx context.Context, accountID int64, newRawPassword string) (*models.Account, error) {
	hash, err := s.hasher.Hash(newRawPassword)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.PasswordHash = hash
	account.ClearToken(models.TokenKindPasswordReset)

	if err := repo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("error saving password: %w", err)
	}

	s.logger.Info(ctx, "password changed", "account_id", account.ID)
	s.notifier.SendPasswordChanged(ctx, account)
	return account, nil
}

// Get returns the account with the given id.
func (s *AccountService) Get(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
}

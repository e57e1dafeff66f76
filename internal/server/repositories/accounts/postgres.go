package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// EmailIndex is the unique index enforcing case-insensitive email identity.
const EmailIndex = "accounts_email_lower_idx"

const accountColumns = `id, email, password_hash, role, status,
		first_name, last_name, phone_number, promotions_opt_in,
		verification_token, verification_token_expires_at,
		password_reset_token, password_reset_token_expires_at,
		created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.Status,
		&a.Profile.FirstName, &a.Profile.LastName, &a.Profile.PhoneNumber, &a.Profile.PromotionsOptIn,
		&a.VerificationToken, &a.VerificationTokenExpiresAt,
		&a.ResetToken, &a.ResetTokenExpiresAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (email, password_hash, role, status,
		     first_name, last_name, phone_number, promotions_opt_in)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.Email, a.PasswordHash, a.Role, a.Status,
		a.Profile.FirstName, a.Profile.LastName, a.Profile.PhoneNumber, a.Profile.PromotionsOptIn,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, EmailIndex) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByTokenForUpdate(ctx context.Context, kind models.TokenKind, digest string) (*models.Account, error) {
	var column string
	switch kind {
	case models.TokenKindVerification:
		column = "verification_token"
	case models.TokenKindPasswordReset:
		column = "password_reset_token"
	default:
		return nil, fmt.Errorf("%w: unknown token kind %q", common.ErrInvalidInput, kind)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + column + ` = $1 FOR UPDATE`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, digest))
	if errors.Is(err, common.ErrAccountNotFound) {
		return nil, common.ErrTokenNotFound
	}
	return a, err
}

func (r *PostgresRepository) LockByID(ctx context.Context, id int64) error {
	query := `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`

	var locked int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrAccountNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query :=
		`UPDATE accounts SET
		     password_hash = $2, role = $3, status = $4,
		     first_name = $5, last_name = $6, phone_number = $7, promotions_opt_in = $8,
		     verification_token = $9, verification_token_expires_at = $10,
		     password_reset_token = $11, password_reset_token_expires_at = $12,
		     updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, a.ID,
		a.PasswordHash, a.Role, a.Status,
		a.Profile.FirstName, a.Profile.LastName, a.Profile.PhoneNumber, a.Profile.PromotionsOptIn,
		a.VerificationToken, a.VerificationTokenExpiresAt,
		a.ResetToken, a.ResetTokenExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}

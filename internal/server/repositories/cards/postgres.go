package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// OneDefaultIndex is the partial unique index allowing a single default
// card per account. Violations mean a concurrent writer won the race.
const OneDefaultIndex = "payment_cards_one_default_idx"

const cardSelect = `SELECT c.id, c.account_id, c.billing_address_id, c.encrypted_card_number,
		c.cardholder_name, c.card_type, c.expiration_date, c.is_default,
		c.created_at, c.updated_at,
		a.street, a.city, a.state, a.country, a.zip, a.address_type
	FROM payment_cards c
	JOIN addresses a ON a.id = c.billing_address_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.PaymentCard, error) {
	c := &models.PaymentCard{BillingAddress: &models.Address{}}
	addr := c.BillingAddress
	err := row.Scan(&c.ID, &c.AccountID, &c.BillingAddressID, &c.EncryptedNumber,
		&c.CardholderName, &c.Type, &c.ExpirationDate, &c.IsDefault,
		&c.CreatedAt, &c.UpdatedAt,
		&addr.Street, &addr.City, &addr.State, &addr.Country, &addr.Zip, &addr.Type)
	if err != nil {
		return nil, err
	}
	addr.ID, addr.AccountID = c.BillingAddressID, c.AccountID
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.PaymentCard) (*models.PaymentCard, error) {
	query :=
		`INSERT INTO payment_cards (account_id, billing_address_id, encrypted_card_number,
		     cardholder_name, card_type, expiration_date, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		c.AccountID, c.BillingAddressID, c.EncryptedNumber,
		c.CardholderName, c.Type, c.ExpirationDate, c.IsDefault,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.PaymentCard, error) {
	c, err := scanCard(r.db.QueryRowContext(ctx, cardSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrCardNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetDefault(ctx context.Context, accountID int64) (*models.PaymentCard, error) {
	query := cardSelect + ` WHERE c.account_id = $1 AND c.is_default`

	c, err := scanCard(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrCardNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.PaymentCard, error) {
	query := cardSelect + ` WHERE c.account_id = $1 ORDER BY c.is_default DESC, c.created_at, c.id`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PaymentCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.PaymentCard) error {
	query :=
		`UPDATE payment_cards
		 SET encrypted_card_number = $2, cardholder_name = $3, card_type = $4,
		     expiration_date = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.EncryptedNumber, c.CardholderName, c.Type, c.ExpirationDate,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrCardNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_cards WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ClearDefault(ctx context.Context, accountID int64) error {
	query :=
		`UPDATE payment_cards SET is_default = FALSE, updated_at = now()
		 WHERE account_id = $1 AND is_default
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetDefault(ctx context.Context, id int64) error {
	query := `UPDATE payment_cards SET is_default = TRUE, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return common.ErrCardNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return common.ErrCardNotFound
	}
	return nil
}

func (r *PostgresRepository) PromoteEarliest(ctx context.Context, accountID int64) (int64, error) {
	query :=
		`UPDATE payment_cards SET is_default = TRUE, updated_at = now()
		 WHERE id = (
		     SELECT id FROM payment_cards
		     WHERE account_id = $1
		     ORDER BY created_at, id
		     LIMIT 1
		 )
		 RETURNING id
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

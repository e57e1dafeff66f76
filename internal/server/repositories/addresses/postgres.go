package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Address) (*models.Address, error) {
	query :=
		`INSERT INTO addresses (account_id, street, city, state, country, zip, address_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.AccountID, a.Street, a.City, a.State, a.Country, a.Zip, a.Type).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Address, error) {
	query :=
		`SELECT id, account_id, street, city, state, country, zip, address_type
		 FROM addresses WHERE id = $1
		 `

	a := &models.Address{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&a.ID, &a.AccountID, &a.Street, &a.City, &a.State, &a.Country, &a.Zip, &a.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Address) error {
	query :=
		`UPDATE addresses
		 SET street = $2, city = $3, state = $4, country = $5, zip = $6
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, a.ID, a.Street, a.City, a.State, a.Country, a.Zip)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Package accounts persists Account rows.
package accounts

import (
	"context"

	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	// GetByTokenForUpdate finds the account holding digest in the slot for
	// kind and locks its row. Must run inside a transaction.
	GetByTokenForUpdate(ctx context.Context, kind models.TokenKind, digest string) (*models.Account, error)
	// LockByID takes a row lock on the account, serializing writers that
	// touch the account's dependent rows. Must run inside a transaction.
	LockByID(ctx context.Context, id int64) error
	Update(ctx context.Context, account *models.Account) error
}

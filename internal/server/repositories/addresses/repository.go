// Package addresses persists billing and home addresses.
package addresses

import (
	"context"

	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, address *models.Address) (*models.Address, error)
	GetByID(ctx context.Context, id int64) (*models.Address, error)
	Update(ctx context.Context, address *models.Address) error
	Delete(ctx context.Context, id int64) error
}

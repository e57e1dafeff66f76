// Package cards persists payment cards. Card numbers arrive and leave
// already encrypted; this layer never sees plaintext.
package cards

import (
	"context"

	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, card *models.PaymentCard) (*models.PaymentCard, error)
	GetByID(ctx context.Context, id int64) (*models.PaymentCard, error)
	// ListByAccount returns the account's cards, default first, then by
	// creation order.
	ListByAccount(ctx context.Context, accountID int64) ([]*models.PaymentCard, error)
	GetDefault(ctx context.Context, accountID int64) (*models.PaymentCard, error)
	// Update rewrites the card's number and metadata. Default status is
	// changed through ClearDefault and SetDefault only.
	Update(ctx context.Context, card *models.PaymentCard) error
	CountByAccount(ctx context.Context, accountID int64) (int, error)
	ClearDefault(ctx context.Context, accountID int64) error
	SetDefault(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	// PromoteEarliest marks the account's earliest-created card as default
	// and returns its id, or 0 when the account has no cards.
	PromoteEarliest(ctx context.Context, accountID int64) (int64, error)
}

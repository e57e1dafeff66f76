package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/cards"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/repomanager"
)

// CardCipher encrypts card numbers at rest.
type CardCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(stored string) (string, error)
}

// CardDetails is the input for a new or updated card. Number is plaintext.
type CardDetails struct {
	Number         string
	CardholderName string
	Type           models.CardType
	ExpirationDate string // MM/YYYY
	MakeDefault    bool
}

// BillingAddress is the address stored with a card.
type BillingAddress struct {
	Street  string
	City    string
	State   string
	Country string
	Zip     string
}

// VaultService stores payment cards with encrypted numbers. For every
// account with at least one card exactly one card is the default.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      CardCipher
	maxCards    int
	policy      dbx.RetryPolicy
	now         func() time.Time
	logger      logging.Logger
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, c CardCipher, maxCards int, l logging.Logger, opts ...Option) *VaultService {
	o := buildOptions(opts)
	policy := dbx.DefaultRetryPolicy
	policy.RetryableConstraints = []string{cards.OneDefaultIndex}
	return &VaultService{
		db:          db,
		repomanager: m,
		cipher:      c,
		maxCards:    maxCards,
		policy:      policy,
		now:         o.now,
		logger:      l.With("module", "vault_service"),
	}
}

func normalizeCardNumber(n string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(n)
}

func (s *VaultService) validate(d *CardDetails, addr *BillingAddress) error {
	d.Number = normalizeCardNumber(d.Number)
	if len(d.Number) < 12 || len(d.Number) > 19 {
		return fmt.Errorf("%w: card number must have 12 to 19 digits", common.ErrInvalidInput)
	}
	for _, r := range d.Number {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: card number must be numeric", common.ErrInvalidInput)
		}
	}

	d.CardholderName = strings.TrimSpace(d.CardholderName)
	if d.CardholderName == "" {
		return fmt.Errorf("%w: cardholder name is required", common.ErrInvalidInput)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unsupported card type %q", common.ErrInvalidInput, d.Type)
	}
	if err := checkExpiration(d.ExpirationDate, s.now()); err != nil {
		return err
	}

	if addr == nil || strings.TrimSpace(addr.Street) == "" {
		return fmt.Errorf("%w: billing street is required", common.ErrInvalidInput)
	}
	return nil
}

// checkExpiration accepts MM/YYYY dates whose month has not yet ended.
func checkExpiration(exp string, now time.Time) error {
	month, year, ok := strings.Cut(exp, "/")
	if !ok || len(month) != 2 || len(year) != 4 {
		return fmt.Errorf("%w: expiration date must be MM/YYYY", common.ErrInvalidInput)
	}
	m, err1 := strconv.Atoi(month)
	y, err2 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || m < 1 || m > 12 {
		return fmt.Errorf("%w: expiration date must be MM/YYYY", common.ErrInvalidInput)
	}

	firstAfter := time.Date(y, time.Month(m)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstAfter) {
		return fmt.Errorf("%w: card has expired", common.ErrInvalidInput)
	}
	return nil
}

// CreateCard stores a card and its billing address. The account's first
// card becomes the default whatever MakeDefault says; later cards become
// default only when requested, clearing the previous default.
func (s *VaultService) CreateCard(ctx context.Context, accountID int64, d CardDetails, addr BillingAddress) (*models.PaymentCard, error) {
	if err := s.validate(&d, &addr); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(d.Number)
	if err != nil {
		return nil, err
	}

	var card *models.PaymentCard
	err = dbx.WithRetryTx(ctx, s.db, nil, s.policy, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).LockByID(ctx, accountID); err != nil {
			return err
		}

		cardRepo := s.repomanager.Cards(tx)
		n, err := cardRepo.CountByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if n >= s.maxCards {
			return common.ErrCardLimitReached
		}

		address, err := s.repomanager.Addresses(tx).Create(ctx, &models.Address{
			AccountID: accountID,
			Street:    strings.TrimSpace(addr.Street),
			City:      strings.TrimSpace(addr.City),
			State:     strings.TrimSpace(addr.State),
			Country:   strings.TrimSpace(addr.Country),
			Zip:       strings.TrimSpace(addr.Zip),
			Type:      models.AddressBilling,
		})
		if err != nil {
			return err
		}

		isDefault := n == 0 || d.MakeDefault
		if isDefault && n > 0 {
			if err := cardRepo.ClearDefault(ctx, accountID); err != nil {
				return err
			}
		}

		c, err := cardRepo.Create(ctx, &models.PaymentCard{
			AccountID:        accountID,
			BillingAddressID: address.ID,
			EncryptedNumber:  encrypted,
			CardholderName:   d.CardholderName,
			Type:             d.Type,
			ExpirationDate:   d.ExpirationDate,
			IsDefault:        isDefault,
		})
		if err != nil {
			return err
		}
		c.BillingAddress = address
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	card.Number = d.Number
	s.logger.Info(ctx, "card created", "account_id", accountID, "card_id", card.ID, "default", card.IsDefault)
	return card, nil
}

// ownedCard returns the card when it belongs to accountID. A card owned by
// someone else is reported as not found.
func ownedCard(ctx context.Context, repo cards.Repository, accountID, cardID int64) (*models.PaymentCard, error) {
	c, err := repo.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if c.AccountID != accountID {
		return nil, common.ErrCardNotFound
	}
	return c, nil
}

// SetDefault makes cardID the account's only default card.
func (s *VaultService) SetDefault(ctx context.Context, accountID, cardID int64) error {
	err := dbx.WithRetryTx(ctx, s.db, nil, s.policy, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).LockByID(ctx, accountID); err != nil {
			return err
		}

		repo := s.repomanager.Cards(tx)
		c, err := ownedCard(ctx, repo, accountID, cardID)
		if err != nil {
			return err
		}
		if c.IsDefault {
			return nil
		}
		if err := repo.ClearDefault(ctx, accountID); err != nil {
			return err
		}
		return repo.SetDefault(ctx, cardID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "default card changed", "account_id", accountID, "card_id", cardID)
	return nil
}

// UpdateCard replaces a card's number, metadata and billing address. With
// MakeDefault set the card becomes the account's default; without it the
// default status is left as is, so the default card is never unset here.
func (s *VaultService) UpdateCard(ctx context.Context, accountID, cardID int64, d CardDetails, addr BillingAddress) (*models.PaymentCard, error) {
	if err := s.validate(&d, &addr); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(d.Number)
	if err != nil {
		return nil, err
	}

	var card *models.PaymentCard
	err = dbx.WithRetryTx(ctx, s.db, nil, s.policy, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).LockByID(ctx, accountID); err != nil {
			return err
		}

		repo := s.repomanager.Cards(tx)
		c, err := ownedCard(ctx, repo, accountID, cardID)
		if err != nil {
			return err
		}

		c.EncryptedNumber = encrypted
		c.CardholderName = d.CardholderName
		c.Type = d.Type
		c.ExpirationDate = d.ExpirationDate
		if err := repo.Update(ctx, c); err != nil {
			return err
		}

		address := &models.Address{
			ID:        c.BillingAddressID,
			AccountID: accountID,
			Street:    strings.TrimSpace(addr.Street),
			City:      strings.TrimSpace(addr.City),
			State:     strings.TrimSpace(addr.State),
			Country:   strings.TrimSpace(addr.Country),
			Zip:       strings.TrimSpace(addr.Zip),
			Type:      models.AddressBilling,
		}
		if err := s.repomanager.Addresses(tx).Update(ctx, address); err != nil {
			return err
		}
		c.BillingAddress = address

		if d.MakeDefault && !c.IsDefault {
			if err := repo.ClearDefault(ctx, accountID); err != nil {
				return err
			}
			if err := repo.SetDefault(ctx, c.ID); err != nil {
				return err
			}
			c.IsDefault = true
		}
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	card.Number = d.Number
	s.logger.Info(ctx, "card updated", "account_id", accountID, "card_id", card.ID, "default", card.IsDefault)
	return card, nil
}

// DeleteCard removes a card and its billing address. When the default card
// goes, the earliest-created remaining card is promoted.
func (s *VaultService) DeleteCard(ctx context.Context, accountID, cardID int64) error {
	var promoted int64
	err := dbx.WithRetryTx(ctx, s.db, nil, s.policy, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).LockByID(ctx, accountID); err != nil {
			return err
		}

		repo := s.repomanager.Cards(tx)
		c, err := ownedCard(ctx, repo, accountID, cardID)
		if err != nil {
			return err
		}

		if err := repo.Delete(ctx, c.ID); err != nil {
			return err
		}
		if err := s.repomanager.Addresses(tx).Delete(ctx, c.BillingAddressID); err != nil {
			return err
		}

		promoted = 0
		if c.IsDefault {
			promoted, err = repo.PromoteEarliest(ctx, accountID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "card deleted", "account_id", accountID, "card_id", cardID, "promoted_card_id", promoted)
	return nil
}

// ListForAccount returns the account's cards, default first, with numbers
// decrypted.
func (s *VaultService) ListForAccount(ctx context.Context, accountID int64) ([]*models.PaymentCard, error) {
	list, err := s.repomanager.Cards(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if err := s.reveal(ctx, c); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// GetDefault returns the account's default card with its number decrypted.
func (s *VaultService) GetDefault(ctx context.Context, accountID int64) (*models.PaymentCard, error) {
	c, err := s.repomanager.Cards(s.db).GetDefault(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.reveal(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// reveal fills in the plaintext number, and the billing address when the
// card was loaded without it. Rows written before encryption was introduced
// hold the number as is, so a failed decryption falls back to the stored
// value.
func (s *VaultService) reveal(ctx context.Context, c *models.PaymentCard) error {
	if c.BillingAddress == nil {
		address, err := s.repomanager.Addresses(s.db).GetByID(ctx, c.BillingAddressID)
		if err != nil {
			return fmt.Errorf("billing address for card %d: %w", c.ID, err)
		}
		c.BillingAddress = address
	}

	plain, err := s.cipher.Decrypt(c.EncryptedNumber)
	if err != nil {
		s.logger.Warn(ctx, "card number not decryptable, using stored value", "card_id", c.ID, "error", err)
		c.Number = c.EncryptedNumber
		return nil
	}
	c.Number = plain
	return nil
}

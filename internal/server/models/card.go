package models

import "time"

// CardType is the card network.
type CardType string

const (
	CardVisa       CardType = "visa"
	CardMastercard CardType = "mastercard"
	CardAmex       CardType = "amex"
	CardDiscover   CardType = "discover"
)

// Valid reports whether t is a supported network.
func (t CardType) Valid() bool {
	switch t {
	case CardVisa, CardMastercard, CardAmex, CardDiscover:
		return true
	}
	return false
}

// PaymentCard is a stored card. EncryptedNumber is what the database holds;
// Number is only filled in after decryption for display and is never
// persisted.
type PaymentCard struct {
	ID               int64
	AccountID        int64
	BillingAddressID int64
	EncryptedNumber  string
	Number           string
	CardholderName   string
	Type             CardType
	ExpirationDate   string // MM/YYYY
	IsDefault        bool
	BillingAddress   *Address
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MaskedNumber returns the number with all but the last four digits hidden.
func (c *PaymentCard) MaskedNumber() string {
	n := c.Number
	if len(n) <= 4 {
		return n
	}
	return "**** **** **** " + n[len(n)-4:]
}

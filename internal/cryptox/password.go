package cryptox

import (
	"errors"
	"fmt"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when a hasher is built with cost 0.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies passwords with bcrypt. The hash embeds
// its own salt and cost, so verification never needs the configured cost.
type PasswordHasher struct {
	cost int

	// dummy is compared against when an account does not exist, so lookups
	// for unknown emails cost as much as real ones.
	dummy []byte
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

// Hash returns the bcrypt hash of raw. Empty passwords and passwords longer
// than bcrypt's 72-byte limit are rejected with common.ErrInvalidInput.
func (h *PasswordHasher) Hash(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: password must not be empty", common.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", common.ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare checks raw against hash in constant time. A mismatch yields
// common.ErrInvalidCredentials.
func (h *PasswordHasher) Compare(hash, raw string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return common.ErrInvalidCredentials
	}
	return fmt.Errorf("compare password: %w", err)
}

// CompareDummy burns one bcrypt comparison and always fails.
func (h *PasswordHasher) CompareDummy(raw string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(raw))
}

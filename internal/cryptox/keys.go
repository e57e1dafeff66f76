package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ParseHexKey decodes a hex-encoded 256-bit key, as supplied through the
// AES_KEY setting.
func ParseHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("card key is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("card key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// DeriveKey stretches a passphrase into a 256-bit key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// TokenDigest returns the hex SHA-256 of a single-use token. Only digests
// are persisted, so a database read does not yield redeemable tokens.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

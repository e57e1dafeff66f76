// Package cryptox holds the server's cryptographic primitives: the
// authenticated cipher protecting card numbers at rest, password hashing,
// key parsing and derivation, and digests for single-use tokens.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

const nonceSize = 12

// CardCipher encrypts and decrypts card numbers with AES-256-GCM.
//
// Every Encrypt call draws a fresh random nonce, so encrypting the same
// number twice yields different ciphertexts. The stored form is
// base64(nonce || ciphertext || tag).
type CardCipher struct {
	aead cipher.AEAD
}

// NewCardCipher builds a cipher from a 32-byte key.
func NewCardCipher(key []byte) (*CardCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrEncryptionFailure, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}

	return &CardCipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the encoded stored form.
func (c *CardCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered, truncated or foreign ciphertexts fail
// with common.ErrEncryptionFailure.
func (c *CardCipher) Decrypt(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", common.ErrEncryptionFailure, err)
	}
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", common.ErrEncryptionFailure)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}
	return string(plaintext), nil
}

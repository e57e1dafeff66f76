package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexKey(t *testing.T) {
	good := strings.Repeat("ab", KeySize)

	key, err := ParseHexKey(" " + good + "\n")
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = ParseHexKey("zz")
	assert.Error(t, err)

	_, err = ParseHexKey(strings.Repeat("ab", 16))
	assert.ErrorContains(t, err, "32 bytes")
}

func TestDeriveKey_DeterministicPerSalt(t *testing.T) {
	a := DeriveKey([]byte("passphrase"), []byte("salt-1"))
	b := DeriveKey([]byte("passphrase"), []byte("salt-1"))
	c := DeriveKey([]byte("passphrase"), []byte("salt-2"))

	assert.Len(t, a, KeySize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err := NewCardCipher(a)
	assert.NoError(t, err)
}

func TestTokenDigest(t *testing.T) {
	d := TokenDigest("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)
	assert.NotEqual(t, d, TokenDigest("abd"))
}

package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestSealOpenRoundTrip(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := cipher.Seal("p@ssw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "p@ssw0rd", sealed)

	plain, err := cipher.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "p@ssw0rd", plain)
}

func TestSealIsRandomized(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	first, err := cipher.Seal("same input")
	require.NoError(t, err)
	second, err := cipher.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestEmptyStringPassesThrough(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := cipher.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := cipher.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestOpenRejectsGarbage(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	_, err = cipher.Open("%%not base64%%")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = cipher.Open("dG9vc2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := cipher.Seal("secret value")
	require.NoError(t, err)

	tampered := strings.Replace(sealed, sealed[:1], "A", 1)
	if tampered == sealed {
		tampered = strings.Replace(sealed, sealed[:1], "B", 1)
	}
	_, err = cipher.Open(tampered)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("zz")
	assert.Error(t, err)

	_, err = NewCipher("abcd")
	assert.Error(t, err)
}

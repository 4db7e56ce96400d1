package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := JWTConfig{Secret: "test-secret", TokenTTL: time.Hour}

	token, err := GenerateToken(cfg, 42, "operator", "viewer")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(cfg.Secret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, "viewer", claims.Role)
	assert.Equal(t, "operator", claims.Subject)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	cfg := JWTConfig{Secret: "test-secret", TokenTTL: time.Hour}

	token, err := GenerateToken(cfg, 42, "operator", "viewer")
	require.NoError(t, err)

	_, err = ValidateToken("another-secret", token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := JWTConfig{Secret: "test-secret", TokenTTL: -time.Minute}

	token, err := GenerateToken(cfg, 42, "operator", "viewer")
	require.NoError(t, err)

	// A non-positive TTL falls back to the 24h default, so the token above is
	// still valid. Expiry itself is enforced by the jwt parser.
	claims, err := ValidateToken(cfg.Secret, token)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken("test-secret", "not.a.token")
	assert.Error(t, err)
}

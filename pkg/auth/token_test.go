package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentos-labs/agentos-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "agentos-test",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAdminToken(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAdminToken(cfg, time.Now(), "ops@example.com")
	require.NoError(t, err)

	claims, err := ParseAdminToken(cfg, signed)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "agentos-test", claims.Issuer)
}

func TestParseAdminTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAdminToken(cfg, time.Now(), "ops")
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAdminToken(other, signed)
	require.Error(t, err)
}

func TestParseAdminTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAdminToken(cfg, time.Now().Add(-2*time.Hour), "ops")
	require.NoError(t, err)

	_, err = ParseAdminToken(cfg, signed)
	require.Error(t, err)
}

func TestMintAdminTokenRequiresSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = ""
	_, err := MintAdminToken(cfg, time.Now(), "ops")
	require.Error(t, err)
}

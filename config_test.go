package accounts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvConfig(t *testing.T) {
	t.Setenv("ACCOUNTS_SIGNING_KEY", "env-signing-key")
	t.Setenv("ACCOUNTS_ISSUER", "accounts")
	t.Setenv("ACCOUNTS_AUDIENCE", "web,api")
	t.Setenv("ACCOUNTS_BASE_URL", "https://example.com")

	cfg, err := NewEnvConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-signing-key", cfg.GetSigningKey())
	assert.Equal(t, "accounts", cfg.GetIssuer())
	assert.Equal(t, []string{"web", "api"}, cfg.GetAudience())
	assert.Equal(t, "https://example.com", cfg.GetBaseURL())

	// Defaults kick in for everything unset.
	assert.Equal(t, 72, cfg.GetSessionDuration())
	assert.True(t, cfg.GetRequireActivation())
	assert.Equal(t, 72*time.Hour, cfg.GetActivationTokenTTL())
	assert.Equal(t, "en_US", cfg.GetDefaultLocale())
	assert.Equal(t, "session", cfg.GetSessionCookieName())
	assert.Equal(t, "locale", cfg.GetLocaleCookieName())
	assert.Equal(t, "flash", cfg.GetFlashCookieName())
}

func TestNewEnvConfigRequiresSigningKey(t *testing.T) {
	t.Setenv("ACCOUNTS_SIGNING_KEY", "")

	_, err := NewEnvConfig()
	require.Error(t, err)
}

func TestEnvConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	cfg.SessionDuration = 0
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.SigningKey = ""
	require.Error(t, cfg.Validate())
}

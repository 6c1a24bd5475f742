package accounts

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

var _ Config = &EnvConfig{}

// EnvConfig sources auth options from the environment.
type EnvConfig struct {
	SigningKey         string        `env:"ACCOUNTS_SIGNING_KEY"`
	SessionDuration    int           `env:"ACCOUNTS_SESSION_DURATION" envDefault:"72"`
	Issuer             string        `env:"ACCOUNTS_ISSUER"`
	Audience           []string      `env:"ACCOUNTS_AUDIENCE" envSeparator:","`
	RequireActivation  bool          `env:"ACCOUNTS_REQUIRE_ACTIVATION" envDefault:"true"`
	ActivationTokenTTL time.Duration `env:"ACCOUNTS_ACTIVATION_TOKEN_TTL" envDefault:"72h"`
	DefaultLocale      string        `env:"ACCOUNTS_DEFAULT_LOCALE" envDefault:"en_US"`
	MailFrom           string        `env:"ACCOUNTS_MAIL_FROM"`
	BaseURL            string        `env:"ACCOUNTS_BASE_URL"`
	SessionCookieName  string        `env:"ACCOUNTS_SESSION_COOKIE" envDefault:"session"`
	LocaleCookieName   string        `env:"ACCOUNTS_LOCALE_COOKIE" envDefault:"locale"`
	FlashCookieName    string        `env:"ACCOUNTS_FLASH_COOKIE" envDefault:"flash"`
}

// NewEnvConfig parses auth options from environment variables.
func NewEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse environment configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options that have no safe default.
func (c *EnvConfig) Validate() error {
	if c.SigningKey == "" {
		return errors.New("signing key is required", errors.CategoryBadInput)
	}
	if c.SessionDuration <= 0 {
		return errors.New("session duration must be positive", errors.CategoryBadInput)
	}
	return nil
}

func (c *EnvConfig) GetSigningKey() string                { return c.SigningKey }
func (c *EnvConfig) GetSessionDuration() int              { return c.SessionDuration }
func (c *EnvConfig) GetIssuer() string                    { return c.Issuer }
func (c *EnvConfig) GetAudience() []string                { return c.Audience }
func (c *EnvConfig) GetRequireActivation() bool           { return c.RequireActivation }
func (c *EnvConfig) GetActivationTokenTTL() time.Duration { return c.ActivationTokenTTL }
func (c *EnvConfig) GetDefaultLocale() string             { return c.DefaultLocale }
func (c *EnvConfig) GetMailFrom() string                  { return c.MailFrom }
func (c *EnvConfig) GetBaseURL() string                   { return c.BaseURL }
func (c *EnvConfig) GetSessionCookieName() string         { return c.SessionCookieName }
func (c *EnvConfig) GetLocaleCookieName() string          { return c.LocaleCookieName }
func (c *EnvConfig) GetFlashCookieName() string           { return c.FlashCookieName }

package federated

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
)

// SessionMinter issues a signed session token for a resolved account.
type SessionMinter interface {
	Mint(account *accounts.Account) (string, error)
}

// Authenticator orchestrates the federated login flow: redirect out with
// signed state, resolve the callback claim onto an account, mint a session.
type Authenticator struct {
	providers map[string]Provider
	state     StateManager
	merger    *Merger
	sessions  SessionMinter
	events    accounts.EventSink
	logger    accounts.Logger
	config    AuthConfig
}

// AuthConfig configures the federated authenticator.
type AuthConfig struct {
	DefaultRedirectURL string
	StateHMACKey       []byte
	StateTTL           time.Duration
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// WithProvider registers an identity provider.
func WithProvider(provider Provider) AuthOption {
	return func(a *Authenticator) {
		if provider == nil {
			return
		}
		a.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) AuthOption {
	return func(a *Authenticator) {
		a.state = sm
	}
}

// WithEventSink sets the sink receiving login events.
func WithEventSink(sink accounts.EventSink) AuthOption {
	return func(a *Authenticator) {
		if sink != nil {
			a.events = sink
		}
	}
}

// WithLogger sets the authenticator logger.
func WithLogger(logger accounts.Logger) AuthOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthenticator creates a federated authenticator.
func NewAuthenticator(
	merger *Merger,
	sessions SessionMinter,
	config AuthConfig,
	opts ...AuthOption,
) *Authenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 10 * time.Minute
	}

	a := &Authenticator{
		providers: make(map[string]Provider),
		merger:    merger,
		sessions:  sessions,
		events:    accounts.EventSinkFunc(nil),
		logger:    accounts.DefaultLogger(),
		config:    cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.state == nil {
		a.state = NewSignedStateManager(cfg.StateHMACKey, cfg.StateTTL)
	}

	return a
}

// AuthRedirect contains the authorization URL for redirecting visitors.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult contains the outcome of a completed federated login.
type AuthResult struct {
	Account     *accounts.Account
	Token       string
	IsNew       bool
	Linked      bool
	Provider    string
	RedirectURL string
}

// BeginAuth starts the flow for a provider and returns the redirect target.
func (a *Authenticator) BeginAuth(ctx context.Context, providerName, redirectURL string) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if redirectURL == "" {
		redirectURL = a.config.DefaultRedirectURL
	}

	stateToken, err := a.state.Encode(&State{
		Provider:    providerName,
		RedirectURL: redirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken),
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the flow after the provider callback.
func (a *Authenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*AuthResult, error) {
	state, err := a.state.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	claim, err := provider.Authenticate(ctx, code)
	if err != nil {
		a.logger.Error("provider %s authentication failed: %v", providerName, err)
		return nil, errors.Wrap(err, ErrAuthenticationFailed.Category, ErrAuthenticationFailed.Message).
			WithTextCode(ErrAuthenticationFailed.TextCode)
	}

	result, err := a.merger.Resolve(ctx, claim)
	if err != nil {
		return nil, err
	}

	if result.Account.Suspended {
		return nil, accounts.ErrAccountSuspended
	}

	token, err := a.sessions.Mint(result.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to mint session: %w", err)
	}

	_ = a.events.Record(ctx, accounts.Event{
		Type:      accounts.EventFederatedLogin,
		AccountID: result.Account.ID.String(),
		Provider:  providerName,
		Metadata: map[string]any{
			"provider_user_id": claim.ProviderUserID,
			"is_new":           result.IsNew,
			"linked":           result.Linked,
		},
		OccurredAt: time.Now(),
	})

	return &AuthResult{
		Account:     result.Account,
		Token:       token,
		IsNew:       result.IsNew,
		Linked:      result.Linked,
		Provider:    providerName,
		RedirectURL: state.RedirectURL,
	}, nil
}

// Providers returns the registered provider names.
func (a *Authenticator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	return names
}

package federated

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound = "federated_provider_not_found"
	TextCodeInvalidState     = "federated_invalid_state"
	TextCodeStateExpired     = "federated_state_expired"
	TextCodeAuthFailed       = "federated_auth_failed"
	TextCodeEmptyClaim       = "federated_empty_claim"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("identity provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrAuthenticationFailed is returned when the provider handshake fails.
var ErrAuthenticationFailed = errors.New("provider authentication failed", errors.CategoryAuth).
	WithTextCode(TextCodeAuthFailed).
	WithCode(errors.CodeUnauthorized)

// ErrEmptyClaim is returned when a provider responds without the attributes
// needed to identify an account. No session is established.
var ErrEmptyClaim = errors.New("empty identity claim", errors.CategoryAuth).
	WithTextCode(TextCodeEmptyClaim).
	WithCode(errors.CodeUnauthorized)

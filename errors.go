package accounts

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Text codes surfaced alongside structured errors so callers can branch
// without string matching.
const (
	TextCodeNoIdentity         = "account_no_identity"
	TextCodeDuplicateIdentity  = "account_duplicate_identity"
	TextCodeAccountNotFound    = "account_not_found"
	TextCodeInvalidCredentials = "account_invalid_credentials"
	TextCodeAccountInactive    = "account_inactive"
	TextCodeAccountSuspended   = "account_suspended"
	TextCodeInvalidToken       = "account_invalid_token"
	TextCodeTokenExpired       = "account_token_expired"
	TextCodeInvalidResetKey    = "account_invalid_reset_key"
	TextCodeInvalidSession     = "account_invalid_session"
	TextCodeSessionExpired     = "account_session_expired"
	TextCodeDeliveryFailed     = "account_delivery_failed"
	TextCodeProviderFailed     = "account_provider_failed"
)

// ErrDuplicateIdentity is returned when an email or provider id is already
// claimed by another account.
var ErrDuplicateIdentity = errors.New("identity already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(errors.CodeConflict)

// ErrAccountNotFound is returned when no account matches a lookup.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidCredentials covers both unknown-email and wrong-password so the
// boundary message never leaks which one happened.
var ErrInvalidCredentials = errors.New("the email or password is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountInactive is returned when login succeeds against an account
// that has not completed activation.
var ErrAccountInactive = errors.New("account pending activation", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeForbidden)

// ErrAccountSuspended is returned when the account has been suspended.
var ErrAccountSuspended = errors.New("account suspended", errors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(errors.CodeForbidden)

// ErrInvalidToken is returned for missing, malformed, or forged activation
// tokens.
var ErrInvalidToken = errors.New("invalid activation key", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when an otherwise valid activation token is
// past its issue window.
var ErrTokenExpired = errors.New("activation key expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidResetKey is returned when the email plus reset key pair does
// not match a stored account.
var ErrInvalidResetKey = errors.New("invalid password reset key", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidResetKey).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSession is returned for session tokens that fail signature or
// claim validation.
var ErrInvalidSession = errors.New("invalid session token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(errors.CodeUnauthorized)

// ErrSessionExpired is returned when a session token is past its expiry.
var ErrSessionExpired = errors.New("session expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrDeliveryFailed wraps mailer transport failures. Account state already
// committed when this surfaces stays committed; the send can be retried.
var ErrDeliveryFailed = errors.New("message delivery failed", errors.CategoryExternal).
	WithTextCode(TextCodeDeliveryFailed)

// ErrProviderUnavailable wraps identity provider call failures.
var ErrProviderUnavailable = errors.New("identity provider unavailable", errors.CategoryExternal).
	WithTextCode(TextCodeProviderFailed)

// IsDuplicateIdentity checks for uniqueness violations, either our own
// fast-path rejection or the authoritative storage conflict.
func IsDuplicateIdentity(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeDuplicateIdentity ||
			richErr.Category == errors.CategoryConflict
	}
	return false
}

// IsDeliveryFailed reports whether err came from the mail transport.
func IsDeliveryFailed(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeDeliveryFailed
	}
	return false
}

// IsNotFound reports whether err represents a missing account.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) {
		return true
	}
	if repository.IsRecordNotFound(err) {
		return true
	}
	return errors.IsNotFound(err)
}

package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetAccountID() string
	GetAccountUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
}

// Mailer is the outbound mail transport capability. Implementations own
// SMTP/API mechanics; msg is a complete MIME message.
type Mailer interface {
	Send(ctx context.Context, from, to string, msg []byte) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSessionDuration() int
	GetIssuer() string
	GetAudience() []string
	GetRequireActivation() bool
	GetActivationTokenTTL() time.Duration
	GetDefaultLocale() string
	GetMailFrom() string
	GetBaseURL() string
	GetSessionCookieName() string
	GetLocaleCookieName() string
	GetFlashCookieName() string
}

// DefaultLogger returns the stdout fallback logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

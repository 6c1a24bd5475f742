package accounts

import (
	"time"

	"github.com/goliatone/go-router"
)

const redirectCookieName = "redirect_to"

// SessionWriter moves session tokens in and out of the session cookie.
type SessionWriter struct {
	cfg      Config
	duration time.Duration
	logger   Logger
}

// NewSessionWriter creates a writer from auth options. Cookie lifetime
// follows the session duration.
func NewSessionWriter(cfg Config, logger Logger) *SessionWriter {
	if logger == nil {
		logger = defLogger{}
	}

	duration := 24 * time.Hour
	if cfg.GetSessionDuration() > 0 {
		duration = time.Duration(cfg.GetSessionDuration()) * time.Hour
	}

	return &SessionWriter{
		cfg:      cfg,
		duration: duration,
		logger:   logger,
	}
}

// WriteSession sets the session cookie.
func (w *SessionWriter) WriteSession(ctx router.Context, token string) {
	ctx.Cookie(&router.Cookie{
		Name:     w.cfg.GetSessionCookieName(),
		Value:    token,
		Expires:  time.Now().Add(w.duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearSession expires the session cookie.
func (w *SessionWriter) ClearSession(ctx router.Context) {
	w.cookieDel(ctx, w.cfg.GetSessionCookieName())
}

// ReadToken returns the raw session token from the request, if any.
func (w *SessionWriter) ReadToken(ctx router.Context) string {
	return ctx.Cookies(w.cfg.GetSessionCookieName())
}

// SetRedirect remembers the rejected URL so a later login can return to it.
func (w *SessionWriter) SetRedirect(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     redirectCookieName,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered URL, falling back to def.
func (w *SessionWriter) GetRedirect(ctx router.Context, def string) string {
	r := ctx.Cookies(redirectCookieName)
	if r == "" {
		return def
	}
	w.cookieDel(ctx, redirectCookieName)
	return r
}

func (w *SessionWriter) cookieDel(ctx router.Context, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

package accounts

import (
	"github.com/goliatone/go-router"
)

// SessionLocalsKey is where the middleware stores the decoded session for
// view layers that read locals instead of the request context.
const SessionLocalsKey = "session"

// MiddlewareConfig configures the session middleware.
type MiddlewareConfig struct {
	// Optional lets the request proceed without a session instead of
	// redirecting.
	Optional bool

	// LoginPath is where anonymous visitors get sent (default: "/login").
	LoginPath string

	// Accounts, when set, loads the session's account record and stashes
	// it in the request context for AccountFromContext.
	Accounts Accounts

	// ErrorHandler overrides the redirect-to-login behavior.
	ErrorHandler func(ctx router.Context, err error) error
}

// RequireSession validates the session cookie and stashes the decoded
// session in the request context. Anonymous or invalid sessions redirect
// to the login page with the rejected URL remembered for after login.
func RequireSession(sessions *SessionService, writer *SessionWriter, cfg MiddlewareConfig) router.MiddlewareFunc {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	fail := cfg.ErrorHandler
	if fail == nil {
		fail = func(ctx router.Context, _ error) error {
			writer.SetRedirect(ctx)
			return ctx.Redirect(cfg.LoginPath, router.StatusSeeOther)
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token := writer.ReadToken(ctx)
			if token == "" {
				if cfg.Optional {
					return next(ctx)
				}
				return fail(ctx, ErrInvalidSession)
			}

			session, err := sessions.SessionFromToken(token)
			if err != nil {
				if cfg.Optional {
					return next(ctx)
				}
				return fail(ctx, err)
			}

			ctx.SetContext(WithSession(ctx.Context(), session))
			ctx.Locals(SessionLocalsKey, session)

			if cfg.Accounts != nil {
				// A session that outlives its account row is still a valid
				// session, handlers fall back to the claims.
				if account, err := cfg.Accounts.GetByID(ctx.Context(), session.GetAccountID()); err == nil {
					ctx.SetContext(WithAccount(ctx.Context(), account))
				}
			}

			return next(ctx)
		}
	}
}

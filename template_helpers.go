package accounts

import (
	"maps"

	"github.com/goliatone/go-accounts/flash"
	"github.com/goliatone/go-accounts/middleware/csrf"
	"github.com/goliatone/go-router"
)

// TemplateSessionKey is the view variable holding the current session.
var TemplateSessionKey = "current_session"

// TemplateHelpers returns per-request view data for template renderers:
// the current session, an is_authenticated flag, and the CSRF helpers
// from the middleware.
//
// In templates:
//
//	{% if is_authenticated %}
//	{{ current_session.GetAccountID }}
//	{{ csrf_field }}
func TemplateHelpers(ctx router.Context) map[string]any {
	helpers := map[string]any{}
	maps.Copy(helpers, csrf.TemplateHelpers(ctx))

	session, ok := SessionFromContext(ctx.Context())
	helpers["is_authenticated"] = ok
	if ok {
		helpers[TemplateSessionKey] = session
	}

	return helpers
}

// TemplateHelpersWithFlash adds the queued one-shot messages under a
// "flashes" key. Draining consumes the cookie, call it once per render.
func TemplateHelpersWithFlash(ctx router.Context, store *flash.Store) map[string]any {
	helpers := TemplateHelpers(ctx)
	if store == nil {
		return helpers
	}

	messages, err := store.DrainAll(ctx)
	if err != nil {
		return helpers
	}
	helpers["flashes"] = messages

	return helpers
}

package locale

import (
	"github.com/goliatone/go-router"
)

// AccountLocaleFunc reports the stored locale preference of the request's
// authenticated account, empty when anonymous.
type AccountLocaleFunc func(ctx router.Context) string

// Middleware resolves the request locale once and stashes it in the
// request context for handlers and renderers.
func Middleware(resolver *Resolver, accountLocale AccountLocaleFunc) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			preference := ""
			if accountLocale != nil {
				preference = accountLocale(ctx)
			}

			tag := resolver.Resolve(ctx, preference)
			ctx.SetContext(WithLocale(ctx.Context(), tag))

			return next(ctx)
		}
	}
}

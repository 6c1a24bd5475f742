package locale

import (
	"context"

	"golang.org/x/text/language"
)

type contextKey struct{}

// WithLocale stashes the resolved locale in the context. The locale is
// resolved once per request and travels with the call chain from there.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// FromContext returns the locale previously set with WithLocale.
func FromContext(ctx context.Context) (language.Tag, bool) {
	tag, ok := ctx.Value(contextKey{}).(language.Tag)
	return tag, ok
}

// FromContextOrDefault returns the context locale, falling back to def.
func FromContextOrDefault(ctx context.Context, def language.Tag) language.Tag {
	if tag, ok := FromContext(ctx); ok {
		return tag
	}
	return def
}

package locale

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type middlewareCtx struct {
	*requestCtx
	ctx context.Context
}

func newMiddlewareCtx() *middlewareCtx {
	return &middlewareCtx{
		requestCtx: newRequestCtx(),
		ctx:        context.Background(),
	}
}

func (c *middlewareCtx) Context() context.Context {
	return c.ctx
}

func (c *middlewareCtx) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func TestMiddlewareStashesLocale(t *testing.T) {
	resolver := newTestResolver()

	var seen language.Tag
	handler := Middleware(resolver, nil)(func(ctx router.Context) error {
		seen = FromContextOrDefault(ctx.Context(), language.Und)
		return nil
	})

	ctx := newMiddlewareCtx()
	ctx.cookies["locale"] = "pt"

	require.NoError(t, handler(ctx))
	assert.Equal(t, language.Portuguese, seen)
}

func TestMiddlewareUsesAccountPreference(t *testing.T) {
	resolver := newTestResolver()

	var seen language.Tag
	handler := Middleware(resolver, func(router.Context) string {
		return "es_ES"
	})(func(ctx router.Context) error {
		seen = FromContextOrDefault(ctx.Context(), language.Und)
		return nil
	})

	require.NoError(t, handler(newMiddlewareCtx()))
	assert.Equal(t, language.EuropeanSpanish, seen)
}

func TestMiddlewareFallsBackToDefault(t *testing.T) {
	resolver := newTestResolver()

	var seen language.Tag
	handler := Middleware(resolver, nil)(func(ctx router.Context) error {
		seen = FromContextOrDefault(ctx.Context(), language.Und)
		return nil
	})

	require.NoError(t, handler(newMiddlewareCtx()))
	assert.Equal(t, language.AmericanEnglish, seen)
}

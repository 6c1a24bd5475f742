package locale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLocaleContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, language.Portuguese, FromContextOrDefault(ctx, language.Portuguese))

	ctx = WithLocale(ctx, language.EuropeanSpanish)

	tag, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, language.EuropeanSpanish, tag)
	assert.Equal(t, language.EuropeanSpanish, FromContextOrDefault(ctx, language.Portuguese))
}

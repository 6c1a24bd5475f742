package federated

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testSessionWriter() *accounts.SessionWriter {
	return accounts.NewSessionWriter(&accounts.EnvConfig{
		SigningKey:        "controller-test-key",
		SessionDuration:   72,
		SessionCookieName: "session",
	}, nil)
}

func TestHTTPControllerBeginAuthRedirects(t *testing.T) {
	provider := &stubProvider{name: "facebook", claim: facebookClaim()}
	auth, cleanup := newTestAuthenticator(t, provider, nil)
	defer cleanup()

	controller := NewHTTPController(auth, testSessionWriter(), HTTPConfig{})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "facebook"
	ctx.QueriesM["redirect_url"] = "/after"
	ctx.On("Context").Return(context.Background())

	var redirectURL string
	ctx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		redirectURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.BeginAuth(ctx))
	assert.True(t, strings.HasPrefix(redirectURL, "https://provider.example/authorize?state="))
}

func TestHTTPControllerBeginAuthUnknownProvider(t *testing.T) {
	auth, cleanup := newTestAuthenticator(t, &stubProvider{name: "facebook"}, nil)
	defer cleanup()

	controller := NewHTTPController(auth, testSessionWriter(), HTTPConfig{})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "myspace"
	ctx.On("Context").Return(context.Background())

	var redirectURL string
	ctx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		redirectURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.BeginAuth(ctx))
	assert.Equal(t, "/login?error=auth_failed", redirectURL)
}

func TestHTTPControllerCallbackSetsCookieAndRedirects(t *testing.T) {
	provider := &stubProvider{name: "facebook", claim: facebookClaim()}
	auth, cleanup := newTestAuthenticator(t, provider, nil)
	defer cleanup()

	controller := NewHTTPController(auth, testSessionWriter(), HTTPConfig{
		SuccessRedirect: "/home",
	})

	redirect, err := auth.BeginAuth(context.Background(), "facebook", "/after-login")
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "facebook"
	ctx.QueriesM["code"] = "oauth-code"
	ctx.QueriesM["state"] = redirect.State
	ctx.On("Context").Return(context.Background())

	var token string
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "session" && c.Value != "" && c.HTTPOnly
	})).Run(func(args mock.Arguments) {
		token = args.Get(0).(*router.Cookie).Value
	}).Return()

	var redirectURL string
	ctx.On("Redirect", mock.Anything, []int{http.StatusSeeOther}).Run(func(args mock.Arguments) {
		redirectURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.Callback(ctx))
	assert.True(t, strings.HasPrefix(token, "session-"))
	assert.Equal(t, "/after-login", redirectURL)
}

func TestHTTPControllerCallbackProviderDeniedAccess(t *testing.T) {
	auth, cleanup := newTestAuthenticator(t, &stubProvider{name: "facebook"}, nil)
	defer cleanup()

	controller := NewHTTPController(auth, testSessionWriter(), HTTPConfig{})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "facebook"
	ctx.QueriesM["error"] = "access_denied"
	ctx.QueriesM["error_description"] = "user denied"
	ctx.On("Context").Return(context.Background())

	var redirectURL string
	ctx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		redirectURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.Callback(ctx))
	assert.Contains(t, redirectURL, "oauth_error=access_denied")
	assert.Contains(t, redirectURL, "desc=user+denied")
}

func TestHTTPControllerCallbackMissingState(t *testing.T) {
	auth, cleanup := newTestAuthenticator(t, &stubProvider{name: "facebook"}, nil)
	defer cleanup()

	var failure error
	controller := NewHTTPController(auth, testSessionWriter(), HTTPConfig{
		ErrorHandler: func(ctx router.Context, err error) error {
			failure = err
			return nil
		},
	})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "facebook"
	ctx.QueriesM["code"] = "oauth-code"
	ctx.On("Context").Return(context.Background())

	require.NoError(t, controller.Callback(ctx))
	assert.ErrorIs(t, failure, ErrInvalidState)
}

package accounts

import (
	"context"
	"testing"

	"github.com/goliatone/go-accounts/flash"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAuthController(t *testing.T, cfg *EnvConfig) (*AuthController, *AuthSessionService, func()) {
	t.Helper()

	svc, _, _, cleanup := setupAuthService(t, cfg, &MockMailer{})

	controller := NewAuthController(
		WithControllerService(svc),
		WithControllerSessions(NewSessionWriter(cfg, nil)),
	)

	return controller, svc, cleanup
}

func TestLoginShowRendersForm(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Return(nil)

	require.NoError(t, ctrl.LoginShow(ctx))
	ctx.AssertExpectations(t)
}

func TestLoginPostValidationFailure(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		payload.Email = "not-an-email"
	}).Return(nil)

	var viewCtx router.ViewContext
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Run(func(args mock.Arguments) {
		viewCtx = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.LoginPost(ctx))

	validation, ok := viewCtx["validation"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, validation, "email")
	assert.Contains(t, validation, "password")
}

func TestLoginPostWrongPassword(t *testing.T) {
	cfg := testConfig()
	cfg.RequireActivation = false
	ctrl, svc, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Pepe Rone",
		Email:    "pepe@example.com",
		Password: "super-secret",
	})
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		payload.Email = "pepe@example.com"
		payload.Password = "wrong-password"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())

	var viewCtx router.ViewContext
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Run(func(args mock.Arguments) {
		viewCtx = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.LoginPost(ctx))

	errs, ok := viewCtx["errors"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, MsgInvalidCredentials, errs["authentication"])
}

func TestLoginPostEstablishesSession(t *testing.T) {
	cfg := testConfig()
	cfg.RequireActivation = false
	ctrl, svc, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Pepe Rone",
		Email:    "pepe@example.com",
		Password: "super-secret",
	})
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		payload.Email = "pepe@example.com"
		payload.Password = "super-secret"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", redirectCookieName).Return("/dashboard")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()

	var redirectURL string
	ctx.On("Redirect", mock.Anything, []int{router.StatusSeeOther}).Run(func(args mock.Arguments) {
		redirectURL = args.String(0)
	}).Return(nil)

	require.NoError(t, ctrl.LoginPost(ctx))

	assert.NotEmpty(t, cookies[cfg.SessionCookieName])
	assert.Equal(t, "/dashboard", redirectURL)
	// The remembered redirect is single use.
	assert.Empty(t, cookies[redirectCookieName])
}

func TestLogOutClearsSession(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()

	var cleared *router.Cookie
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cleared = args.Get(0).(*router.Cookie)
	}).Return()
	ctx.On("Redirect", "/", []int{router.StatusTemporaryRedirect}).Return(nil)

	require.NoError(t, ctrl.LogOut(ctx))

	require.NotNil(t, cleared)
	assert.Equal(t, cfg.SessionCookieName, cleared.Name)
	assert.Empty(t, cleared.Value)
}

// flashMessages decodes the signed flash cookie captured during a request.
func flashMessages(t *testing.T, cfg *EnvConfig, cookies map[string]string) flash.Container {
	t.Helper()

	container, err := flash.NewCodec([]byte(cfg.SigningKey)).Decode(cookies[cfg.FlashCookieName])
	require.NoError(t, err)
	return container
}

func TestRegistrationCreateEstablishesSession(t *testing.T) {
	cfg := testConfig()
	cfg.RequireActivation = false
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*RegistrationCreatePayload)
		payload.Name = "Pepe Rone"
		payload.Email = "pepe@example.com"
		payload.Password = "super-secret"
		payload.ConfirmPassword = "super-secret"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", cfg.FlashCookieName).Return("")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()
	ctx.On("Redirect", "/", []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.RegistrationCreate(ctx))

	assert.NotEmpty(t, cookies[cfg.SessionCookieName])

	messages := flashMessages(t, cfg, cookies)
	assert.Contains(t, messages[flash.CategorySuccess], "Welcome!")
}

func TestRegistrationCreateDuplicateEmail(t *testing.T) {
	cfg := testConfig()
	cfg.RequireActivation = false
	ctrl, svc, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Pepe Rone",
		Email:    "pepe@example.com",
		Password: "super-secret",
	})
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*RegistrationCreatePayload)
		payload.Name = "Pepe Again"
		payload.Email = "pepe@example.com"
		payload.Password = "super-secret"
		payload.ConfirmPassword = "super-secret"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())

	var viewCtx router.ViewContext
	ctx.On("Render", ctrl.Views.Register, mock.Anything).Run(func(args mock.Arguments) {
		viewCtx = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.RegistrationCreate(ctx))

	errs, ok := viewCtx["errors"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, MsgAlreadyRegistered, errs["email"])
	assert.Equal(t, MsgAlreadyRegistered, viewCtx["system_message"])
}

func TestActivateConfirmsAccount(t *testing.T) {
	cfg := testConfig()
	mailer := &MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc, repo, _, cleanup := setupAuthService(t, cfg, mailer)
	defer cleanup()

	ctrl := NewAuthController(
		WithControllerService(svc),
		WithControllerSessions(NewSessionWriter(cfg, nil)),
	)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Pepe Rone",
		Email:    "pepe@example.com",
		Password: "super-secret",
	})
	require.NoError(t, err)

	token, err := NewActivationCodec([]byte(cfg.SigningKey), cfg.ActivationTokenTTL).Issue("pepe@example.com")
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.ParamsM["token"] = token
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", cfg.FlashCookieName).Return("")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()
	ctx.On("Redirect", ctrl.Routes.Login, []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.Activate(ctx))

	account, err := repo.Accounts().GetByEmail(context.Background(), "pepe@example.com")
	require.NoError(t, err)
	assert.True(t, account.Active)

	messages := flashMessages(t, cfg, cookies)
	assert.Contains(t, messages[flash.CategorySuccess], MsgAccountActivated)
}

func TestActivateInvalidToken(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	// Well formed token for an email nobody registered.
	token, err := NewActivationCodec([]byte(cfg.SigningKey), cfg.ActivationTokenTTL).Issue("nobody@example.com")
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.ParamsM["token"] = token
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", cfg.FlashCookieName).Return("")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()
	ctx.On("Redirect", ctrl.Routes.Register, []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.Activate(ctx))

	messages := flashMessages(t, cfg, cookies)
	assert.Contains(t, messages[flash.CategoryError], MsgInvalidActivation)
}

func TestActivationResendPostStaysNonCommittal(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*EmailPayload)
		payload.Email = "nobody@example.com"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", cfg.FlashCookieName).Return("")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()
	ctx.On("Redirect", ctrl.Routes.Login, []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.ActivationResendPost(ctx))

	messages := flashMessages(t, cfg, cookies)
	assert.Contains(t, messages[flash.CategorySuccess], MsgMaybeMailSent)
}

func TestPasswordResetPostStaysNonCommittal(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*EmailPayload)
		payload.Email = "nobody@example.com"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", cfg.FlashCookieName).Return("")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()
	ctx.On("Redirect", ctrl.Routes.Login, []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.PasswordResetPost(ctx))

	messages := flashMessages(t, cfg, cookies)
	assert.Contains(t, messages[flash.CategorySuccess], MsgMaybeMailSent)
}

func TestPasswordResetCompleteShowReadsLink(t *testing.T) {
	cfg := testConfig()
	ctrl, _, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	ctx := router.NewMockContext()
	ctx.QueriesM["email"] = "pepe@example.com"
	ctx.QueriesM["reset_key"] = "abc123"

	var viewCtx router.ViewContext
	ctx.On("Render", ctrl.Views.PasswordReset, mock.Anything).Run(func(args mock.Arguments) {
		viewCtx = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.PasswordResetCompleteShow(ctx))

	record, ok := viewCtx["record"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "pepe@example.com", record["email"])
	assert.Equal(t, "abc123", record["reset_key"])
}

func TestPasswordResetCompleteMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.RequireActivation = false
	ctrl, svc, cleanup := setupAuthController(t, cfg)
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Pepe Rone",
		Email:    "pepe@example.com",
		Password: "super-secret",
	})
	require.NoError(t, err)

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*PasswordResetCompletePayload)
		payload.Email = "pepe@example.com"
		payload.ResetKey = "wrong-key"
		payload.Password = "new-password"
		payload.ConfirmPassword = "new-password"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())

	var viewCtx router.ViewContext
	ctx.On("Render", ctrl.Views.PasswordReset, mock.Anything).Run(func(args mock.Arguments) {
		viewCtx = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.PasswordResetCompleteExecute(ctx))

	errs, ok := viewCtx["errors"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, MsgResetMismatch, errs["reset"])
}

func TestPasswordResetCompleteChangesPassword(t *testing.T) {
	cfg := testConfig()
	cfg.RequireActivation = false

	svc, repo, _, cleanup := setupAuthService(t, cfg, &MockMailer{})
	defer cleanup()

	ctrl := NewAuthController(
		WithControllerService(svc),
		WithControllerSessions(NewSessionWriter(cfg, nil)),
	)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Pepe Rone",
		Email:    "pepe@example.com",
		Password: "super-secret",
	})
	require.NoError(t, err)

	account, err := repo.Accounts().GetByEmail(context.Background(), "pepe@example.com")
	require.NoError(t, err)
	require.NoError(t, repo.Accounts().SetResetKey(context.Background(), account.ID, "abc123"))

	ctx := router.NewMockContext()
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*PasswordResetCompletePayload)
		payload.Email = "pepe@example.com"
		payload.ResetKey = "abc123"
		payload.Password = "brand-new-secret"
		payload.ConfirmPassword = "brand-new-secret"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", cfg.FlashCookieName).Return("")

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie := args.Get(0).(*router.Cookie)
		cookies[cookie.Name] = cookie.Value
	}).Return()
	ctx.On("Redirect", ctrl.Routes.Login, []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.PasswordResetCompleteExecute(ctx))

	messages := flashMessages(t, cfg, cookies)
	assert.Contains(t, messages[flash.CategorySuccess], MsgPasswordChanged)

	result, err := svc.Login(context.Background(), "pepe@example.com", "brand-new-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestValidateStringEquals(t *testing.T) {
	rule := ValidateStringEquals("password")
	assert.NoError(t, rule("password"))
	assert.Error(t, rule("different"))
	assert.Error(t, rule(42))
}

func TestFormatValidationErrors(t *testing.T) {
	payload := LoginRequest{Email: "nope"}
	out := formatValidationErrors(payload.Validate())

	assert.Contains(t, out, "email")
	assert.Contains(t, out, "password")

	out = formatValidationErrors(assert.AnError)
	assert.Contains(t, out, "form")
}

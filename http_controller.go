package accounts

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts/flash"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Boundary messages. Unknown email and wrong password share one message;
// resend and reset-request share the non-committal one.
const (
	MsgInvalidCredentials = "The email or password is invalid."
	MsgAlreadyRegistered  = "This email is already registered."
	MsgInvalidActivation  = "Invalid Activation Key, Please register."
	MsgActivationSent     = "Please check your email to activate your account."
	MsgAccountActivated   = "Your account is active, you can sign in now."
	MsgMaybeMailSent      = "If that email is registered, a message is on its way."
	MsgResetMismatch      = "Sorry, we could not match your email and reset key."
	MsgPasswordChanged    = "Your password has been changed, you can sign in now."
)

// RegisterAuthRoutes mounts the password auth routes on the router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Activation), controller.Activate).
		SetName("activation.get")

	app.Get(controller.Routes.ActivationResend, controller.ActivationResendShow).
		SetName("activation-resend.get")
	app.Post(controller.Routes.ActivationResend, controller.ActivationResendPost).
		SetName("activation-resend.post")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetShow).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	app.Get(controller.Routes.PasswordResetComplete, controller.PasswordResetCompleteShow).
		SetName("pwd-reset-do.get")
	app.Post(controller.Routes.PasswordResetComplete, controller.PasswordResetCompleteExecute).
		SetName("pwd-reset-do.post")
}

type AuthControllerRoutes struct {
	Login                 string
	Logout                string
	Register              string
	Activation            string
	ActivationResend      string
	PasswordReset         string
	PasswordResetComplete string
}

type AuthControllerViews struct {
	Login            string
	Register         string
	ActivationResend string
	PasswordReset    string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Service      *AuthSessionService
	Sessions     *SessionWriter
	Flashes      *flash.Store
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerService sets the session service.
func WithControllerService(service *AuthSessionService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = service
		return c
	}
}

// WithControllerSessions sets the session cookie writer.
func WithControllerSessions(sessions *SessionWriter) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sessions = sessions
		return c
	}
}

// WithControllerFlashes sets the signed flash message store. Without it
// the controller builds one from the service configuration.
func WithControllerFlashes(store *flash.Store) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if store != nil {
			c.Flashes = store
		}
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:                 "/login",
			Logout:                "/logout",
			Register:              "/register",
			Activation:            "/activation",
			ActivationResend:      "/activation-resend",
			PasswordReset:         "/password-reset",
			PasswordResetComplete: "/password-reset/complete",
		},
		Views: &AuthControllerViews{
			Login:            "login",
			Register:         "register",
			ActivationResend: "activation_resend",
			PasswordReset:    "password_reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing AuthSessionService in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionWriter in auth controller...")
	}

	if c.Flashes == nil {
		c.Flashes = flash.NewStore(
			[]byte(c.Service.cfg.GetSigningKey()),
			c.Service.cfg.GetFlashCookieName(),
		)
	}

	return c
}

// flashSuccess queues a one-shot message for the next request.
func (a *AuthController) flashSuccess(ctx router.Context, message string) {
	if err := a.Flashes.Success(ctx, message); err != nil {
		a.Logger.Warn("flash write failed: %v", err)
	}
}

func (a *AuthController) flashError(ctx router.Context, message string) {
	if err := a.Flashes.Error(ctx, message); err != nil {
		a.Logger.Warn("flash write failed: %v", err)
	}
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": formatValidationErrors(err),
		})
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	result, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login failed for %s: %v", payload.Email, err)
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"authentication": MsgInvalidCredentials},
			"record": payload,
		})
	}

	if result.NeedsActivation {
		a.flashError(ctx, MsgActivationSent)
		return ctx.Redirect(a.Routes.ActivationResend, fiber.StatusSeeOther)
	}

	a.Sessions.WriteSession(ctx, result.Token)

	redirect := a.Sessions.GetRedirect(ctx, "/")
	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Sessions.ClearSession(ctx)
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterInput{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Name            string `form:"name" json:"name"`
	CompanyName     string `form:"company_name" json:"company_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	Locale          string `form:"locale" json:"locale"`
	Timezone        string `form:"timezone" json:"timezone"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"system_message": "Error parsing body",
			"errors":         map[string]string{"form": "Failed to parse form"},
			"record":         payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register validate payload: %v", err)
		return ctx.Render(a.Views.Register, router.ViewContext{
			"system_message": "Error validating payload",
			"record":         payload,
			"validation":     formatValidationErrors(err),
		})
	}

	result, err := a.Service.Register(ctx.Context(), RegisterInput{
		Name:        payload.Name,
		CompanyName: payload.CompanyName,
		Email:       payload.Email,
		Password:    payload.Password,
		Locale:      payload.Locale,
		Timezone:    payload.Timezone,
	})
	if err != nil {
		if IsDuplicateIdentity(err) {
			return ctx.Render(a.Views.Register, router.ViewContext{
				"system_message": MsgAlreadyRegistered,
				"record":         payload,
				"errors":         map[string]string{"email": MsgAlreadyRegistered},
			})
		}

		// The account committed but the activation mail did not go out;
		// the resend endpoint covers recovery.
		if result != nil && result.ActivationRequired {
			a.Logger.Error("activation mail failed: %v", err)
			a.flashError(ctx, "We could not send the activation email, please request a new one.")
			return ctx.Redirect(a.Routes.ActivationResend, fiber.StatusSeeOther)
		}

		a.Logger.Error("register failed: %v", err)
		return ctx.Render(a.Views.Register, router.ViewContext{
			"system_message": "Registration failed",
			"record":         payload,
			"errors":         map[string]string{"form": "Registration failed"},
		})
	}

	if result.ActivationRequired {
		a.flashSuccess(ctx, MsgActivationSent)
		return ctx.Redirect("/", fiber.StatusSeeOther)
	}

	a.Sessions.WriteSession(ctx, result.Token)

	a.flashSuccess(ctx, "Welcome!")
	return ctx.Redirect("/", fiber.StatusSeeOther)
}

func (a *AuthController) Activate(ctx router.Context) error {
	token := ctx.Param("token", "")

	account, err := a.Service.Activate(ctx.Context(), token)
	if err != nil {
		a.Logger.Error("activation failed: %v", err)
		a.flashError(ctx, MsgInvalidActivation)
		return ctx.Redirect(a.Routes.Register, fiber.StatusSeeOther)
	}

	a.Logger.Info("account %s activated", account.ID)

	a.flashSuccess(ctx, MsgAccountActivated)
	return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *AuthController) ActivationResendShow(ctx router.Context) error {
	return ctx.Render(a.Views.ActivationResend, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// EmailPayload is the single-field form used by resend and reset-request.
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) ActivationResendPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.ActivationResend, router.ViewContext{
			"record":     payload,
			"validation": formatValidationErrors(err),
		})
	}

	if err := a.Service.ResendActivation(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("activation resend failed: %v", err)
	}

	// One message regardless of outcome, registration status stays private.
	a.flashSuccess(ctx, MsgMaybeMailSent)
	return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *AuthController) PasswordResetShow(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": formatValidationErrors(err),
		})
	}

	if err := a.Service.RequestPasswordReset(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("password reset request failed: %v", err)
	}

	a.flashSuccess(ctx, MsgMaybeMailSent)
	return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *AuthController) PasswordResetCompleteShow(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"record": map[string]string{
			"email":     ctx.Query("email", ""),
			"reset_key": ctx.Query("reset_key", ""),
		},
	})
}

// PasswordResetCompletePayload holds values for the final reset step.
type PasswordResetCompletePayload struct {
	Email           string `form:"email" json:"email"`
	ResetKey        string `form:"reset_key" json:"reset_key"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetCompletePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.ResetKey, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetCompleteExecute(ctx router.Context) error {
	payload := new(PasswordResetCompletePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": formatValidationErrors(err),
		})
	}

	if _, err := a.Service.CompletePasswordReset(ctx.Context(), payload.Email, payload.ResetKey, payload.Password); err != nil {
		a.Logger.Error("password reset completion failed: %v", err)
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"system_message": MsgResetMismatch,
			"record":         payload,
			"errors":         map[string]string{"reset": MsgResetMismatch},
		})
	}

	a.flashSuccess(ctx, MsgPasswordChanged)
	return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// formatValidationErrors flattens ozzo validation errors to a field map.
func formatValidationErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}
	if err != nil {
		out["form"] = err.Error()
	}
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}

package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Defaults for the middleware configuration.
const (
	DefaultTokenLength   = 32
	DefaultCookieName    = "_csrf"
	DefaultContextKey    = "csrf_token"
	DefaultFormFieldName = "_token"
	DefaultHeaderName    = "X-CSRF-Token"
	DefaultExpiration    = 1 * time.Hour
)

var (
	// ErrTokenMissing is returned when an unsafe request carries no token.
	ErrTokenMissing = errors.New("missing CSRF token", errors.CategoryAuth).
			WithTextCode("CSRF_TOKEN_MISSING")
	// ErrTokenInvalid is returned when the submitted token fails validation.
	ErrTokenInvalid = errors.New("invalid CSRF token", errors.CategoryAuth).
			WithTextCode("CSRF_TOKEN_INVALID")
	// ErrSigningKeyMissing is returned when no signing key was configured.
	ErrSigningKeyMissing = errors.New("CSRF signing key not configured", errors.CategoryInternal).
				WithTextCode("CSRF_KEY_MISSING")
)

// TokenExtractor pulls the submitted token from a request.
type TokenExtractor func(ctx router.Context) string

// Config holds the middleware options. The zero value plus a SigningKey
// is a working configuration.
type Config struct {
	// SigningKey signs issued tokens. Required.
	SigningKey []byte

	// TokenLength is the nonce size in bytes.
	TokenLength int

	// CookieName carries the issued token between requests.
	CookieName string

	// ContextKey is the Locals key the token is stashed under so form
	// handlers can render it.
	ContextKey string

	// FormFieldName and HeaderName are where submitted tokens are
	// looked for, in that order.
	FormFieldName string
	HeaderName    string

	// Expiration bounds token age. Zero means DefaultExpiration.
	Expiration time.Duration

	// Skip short-circuits the middleware for matching requests.
	Skip func(ctx router.Context) bool

	// ErrorHandler handles validation failures. The default responds
	// with 403.
	ErrorHandler func(ctx router.Context, err error) error

	// Extractors override the form-then-header lookup order.
	Extractors []TokenExtractor
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength <= 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return ctx.Status(router.StatusForbidden).SendString("Forbidden")
		}
	}
	if len(cfg.Extractors) == 0 {
		cfg.Extractors = []TokenExtractor{
			FromForm(cfg.FormFieldName),
			FromHeader(cfg.HeaderName),
		}
	}

	return cfg
}

// FromForm extracts the token from a form field.
func FromForm(field string) TokenExtractor {
	return func(ctx router.Context) string {
		return ctx.FormValue(field)
	}
}

// FromHeader extracts the token from a request header.
func FromHeader(header string) TokenExtractor {
	return func(ctx router.Context) string {
		return ctx.Header(header)
	}
}

// New creates the CSRF middleware. Every request gets a signed token
// issued into the cookie and stashed in Locals for rendering. Unsafe
// methods must echo a valid token through the form field or header.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			if len(cfg.SigningKey) == 0 {
				return cfg.ErrorHandler(ctx, ErrSigningKeyMissing)
			}

			token := ctx.Cookies(cfg.CookieName)
			if validate(cfg, token) != nil {
				fresh, err := generate(cfg)
				if err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				token = fresh
				writeCookie(ctx, cfg, token)
			}

			ctx.Locals(cfg.ContextKey, token)

			if safeMethod(ctx.Method()) {
				return next(ctx)
			}

			submitted := extract(ctx, cfg)
			if submitted == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if err := validate(cfg, submitted); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				return cfg.ErrorHandler(ctx, ErrTokenInvalid)
			}

			return next(ctx)
		}
	}
}

// TokenFromContext returns the token issued for the current request.
func TokenFromContext(ctx router.Context, contextKey ...string) string {
	key := DefaultContextKey
	if len(contextKey) > 0 && contextKey[0] != "" {
		key = contextKey[0]
	}
	token, _ := ctx.Locals(key).(string)
	return token
}

// TemplateHelpers returns view helpers for rendering the token inside
// forms and meta tags.
func TemplateHelpers(ctx router.Context, cfg ...Config) map[string]any {
	conf := configDefault(cfg...)
	token := TokenFromContext(ctx, conf.ContextKey)

	return map[string]any{
		"csrf_token": token,
		"csrf_field": fmt.Sprintf(
			`<input type="hidden" name="%s" value="%s">`,
			conf.FormFieldName, token,
		),
		"csrf_meta": fmt.Sprintf(
			`<meta name="csrf-token" content="%s">`,
			token,
		),
	}
}

func writeCookie(ctx router.Context, cfg Config, token string) {
	ctx.Cookie(&router.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(cfg.Expiration),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func safeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS", "TRACE":
		return true
	}
	return false
}

func extract(ctx router.Context, cfg Config) string {
	for _, extractor := range cfg.Extractors {
		if token := extractor(ctx); token != "" {
			return token
		}
	}
	return ""
}

// generate issues timestamp:nonce:signature, base64url encoded. The
// signature covers timestamp and nonce so tokens are self validating.
func generate(cfg Config) (string, error) {
	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate CSRF nonce")
	}

	payload := fmt.Sprintf("%d:%s", time.Now().UTC().Unix(), hex.EncodeToString(nonce))

	mac := hmac.New(sha256.New, cfg.SigningKey)
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + signature)), nil
}

func validate(cfg Config, token string) error {
	if token == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenInvalid
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return ErrTokenInvalid
	}

	payload := parts[0] + ":" + parts[1]
	mac := hmac.New(sha256.New, cfg.SigningKey)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return ErrTokenInvalid
	}

	var issued int64
	if _, err := fmt.Sscanf(parts[0], "%d", &issued); err != nil {
		return ErrTokenInvalid
	}

	if time.Since(time.Unix(issued, 0)) > cfg.Expiration {
		return ErrTokenInvalid
	}

	return nil
}

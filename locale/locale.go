package locale

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultParamName is the query/form parameter carrying an explicit
	// locale selection.
	DefaultParamName = "locale"
	// DefaultCookieName stores the visitor's locale preference.
	DefaultCookieName = "locale"
)

// Resolver picks the active locale for a request from a fixed priority
// cascade: cookie, explicit parameter, account preference, Accept-Language
// negotiation, configured default.
type Resolver struct {
	supported  []language.Tag
	matcher    language.Matcher
	def        language.Tag
	cookieName string
	paramName  string
	signingKey []byte
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCookieName overrides the locale cookie name.
func WithCookieName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// WithParamName overrides the locale parameter name.
func WithParamName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.paramName = name
		}
	}
}

// WithSigningKey signs the locale cookie. Once a key is set, a cookie with
// a missing or forged signature reads as absent and the cascade moves on.
func WithSigningKey(key []byte) Option {
	return func(r *Resolver) {
		if len(key) > 0 {
			r.signingKey = key
		}
	}
}

// NewResolver builds a resolver for the supported catalog locales. The
// default locale is always part of the catalog.
func NewResolver(def string, supported []string, opts ...Option) *Resolver {
	defTag := parseTag(def)
	if defTag == language.Und {
		defTag = language.AmericanEnglish
	}

	tags := []language.Tag{defTag}
	for _, raw := range supported {
		tag := parseTag(raw)
		if tag == language.Und || tag == defTag {
			continue
		}
		tags = append(tags, tag)
	}

	r := &Resolver{
		supported:  tags,
		matcher:    language.NewMatcher(tags),
		def:        defTag,
		cookieName: DefaultCookieName,
		paramName:  DefaultParamName,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Default returns the configured default locale.
func (r *Resolver) Default() language.Tag {
	return r.def
}

// Supported returns the catalog locales in priority order.
func (r *Resolver) Supported() []language.Tag {
	out := make([]language.Tag, len(r.supported))
	copy(out, r.supported)
	return out
}

// Resolve picks the locale for the request. accountLocale is the stored
// preference of the authenticated account, empty when anonymous. The
// result is fixed for the rest of the request; callers stash it in the
// context and never re-resolve.
func (r *Resolver) Resolve(ctx router.Context, accountLocale string) language.Tag {
	if tag, ok := r.Lookup(r.cookieValue(ctx)); ok {
		return tag
	}

	if tag, ok := r.Lookup(ctx.Query(r.paramName, "")); ok {
		return tag
	}

	if tag, ok := r.Lookup(accountLocale); ok {
		return tag
	}

	if tag, ok := r.Negotiate(ctx.Header("Accept-Language")); ok {
		return tag
	}

	return r.def
}

// Lookup matches a single locale value against the catalog. Base-language
// fallback applies, pt-BR resolves to pt when only pt is in the catalog.
func (r *Resolver) Lookup(value string) (language.Tag, bool) {
	tag := parseTag(value)
	if tag == language.Und {
		return language.Und, false
	}

	_, index, conf := r.matcher.Match(tag)
	if conf == language.No {
		return language.Und, false
	}
	return r.supported[index], true
}

// Negotiate resolves an Accept-Language style header: entries split on
// commas, optional ;q= weights defaulting to 1.0, invalid weights scored
// 0.0, stable sort descending so equal weights keep listing order, first
// catalog hit wins.
func (r *Resolver) Negotiate(header string) (language.Tag, bool) {
	for _, candidate := range parseAcceptLanguage(header) {
		if tag, ok := r.Lookup(candidate.value); ok {
			return tag, true
		}
	}
	return language.Und, false
}

// WriteCookie stores the tag as the visitor's preference cookie, signed
// when the resolver carries a signing key.
func (r *Resolver) WriteCookie(ctx router.Context, tag language.Tag) {
	value := tag.String()
	if len(r.signingKey) > 0 {
		value = value + "." + r.sign(value)
	}

	ctx.Cookie(&router.Cookie{
		Name:     r.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// cookieValue reads the preference cookie, verifying the signature when a
// signing key is configured.
func (r *Resolver) cookieValue(ctx router.Context) string {
	raw := ctx.Cookies(r.cookieName)
	if len(r.signingKey) == 0 {
		return raw
	}

	value, signature, ok := strings.Cut(raw, ".")
	if !ok || !hmac.Equal([]byte(signature), []byte(r.sign(value))) {
		return ""
	}
	return value
}

func (r *Resolver) sign(value string) string {
	mac := hmac.New(sha256.New, r.signingKey)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Printer returns a message printer bound to the tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

type weightedValue struct {
	value   string
	quality float64
}

func parseAcceptLanguage(header string) []weightedValue {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var entries []weightedValue
	for _, part := range strings.Split(header, ",") {
		value, params, _ := strings.Cut(part, ";")
		value = strings.TrimSpace(value)
		if value == "" || value == "*" {
			continue
		}

		quality := 1.0
		if q, ok := qualityParam(params); ok {
			quality = q
		}

		entries = append(entries, weightedValue{value: value, quality: quality})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].quality > entries[j].quality
	})

	return entries
}

// qualityParam extracts a ;q= weight. A present but unparseable weight
// scores 0.0 so a sloppy client degrades instead of erroring.
func qualityParam(params string) (float64, bool) {
	for _, param := range strings.Split(params, ";") {
		key, raw, ok := strings.Cut(param, "=")
		if !ok || strings.TrimSpace(strings.ToLower(key)) != "q" {
			continue
		}

		q, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || q < 0 || q > 1 {
			return 0.0, true
		}
		return q, true
	}
	return 0, false
}

func parseTag(value string) language.Tag {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", "-"))
	if value == "" {
		return language.Und
	}

	tag, err := language.Parse(value)
	if err != nil {
		return language.Und
	}
	return tag
}

package flash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Common message categories.
const (
	CategoryDefault = "default"
	CategorySuccess = "success"
	CategoryError   = "error"
	CategoryInfo    = "info"
	CategoryWarning = "warning"
)

// ErrInvalidContainer is returned when a container fails signature or
// payload checks.
var ErrInvalidContainer = errors.New("invalid flash container", errors.CategoryBadInput).
	WithTextCode("FLASH_INVALID_CONTAINER")

// Container groups pending messages by category.
type Container map[string][]string

// Add appends a message under the category.
func (c Container) Add(category, message string) {
	c[category] = append(c[category], message)
}

// Empty reports whether the container holds no messages.
func (c Container) Empty() bool {
	for _, messages := range c {
		if len(messages) > 0 {
			return false
		}
	}
	return true
}

// Categories returns the populated category names in stable order.
func (c Container) Categories() []string {
	out := make([]string, 0, len(c))
	for category, messages := range c {
		if len(messages) > 0 {
			out = append(out, category)
		}
	}
	sort.Strings(out)
	return out
}

// Codec signs and verifies serialized containers. The wire form is
// base64url(json) dot base64url(hmac-sha256).
type Codec struct {
	key []byte
}

func NewCodec(key []byte) *Codec {
	return &Codec{key: key}
}

// Encode serializes and signs the container.
func (c *Codec) Encode(container Container) (string, error) {
	payload, err := json.Marshal(container)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to marshal flash container")
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies the signature and deserializes the container. Tampered
// or malformed input yields ErrInvalidContainer, never partial content.
func (c *Codec) Decode(value string) (Container, error) {
	if value == "" {
		return Container{}, nil
	}

	encoded, signature, ok := strings.Cut(value, ".")
	if !ok || encoded == "" || signature == "" {
		return nil, ErrInvalidContainer
	}

	if !hmac.Equal([]byte(signature), []byte(c.sign(encoded))) {
		return nil, ErrInvalidContainer
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidContainer
	}

	container := Container{}
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, ErrInvalidContainer
	}

	return container, nil
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Store keeps the container in a signed client cookie. Reads drain, the
// drained state is written back so a message renders exactly once.
type Store struct {
	codec      *Codec
	cookieName string
}

func NewStore(key []byte, cookieName string) *Store {
	if cookieName == "" {
		cookieName = "flash"
	}
	return &Store{
		codec:      NewCodec(key),
		cookieName: cookieName,
	}
}

// Flash appends a message under the category and rewrites the cookie.
// An empty category lands in CategoryDefault.
func (s *Store) Flash(ctx router.Context, category, message string) error {
	if category == "" {
		category = CategoryDefault
	}
	container := s.load(ctx)
	container.Add(category, message)
	return s.write(ctx, container)
}

// Success records a success message.
func (s *Store) Success(ctx router.Context, message string) error {
	return s.Flash(ctx, CategorySuccess, message)
}

// Error records an error message.
func (s *Store) Error(ctx router.Context, message string) error {
	return s.Flash(ctx, CategoryError, message)
}

// Drain removes and returns the messages for the category. The remaining
// categories stay queued.
func (s *Store) Drain(ctx router.Context, category string) ([]string, error) {
	container := s.load(ctx)

	messages := container[category]
	if len(messages) == 0 {
		return nil, nil
	}

	delete(container, category)

	if container.Empty() {
		s.clear(ctx)
		return messages, nil
	}

	if err := s.write(ctx, container); err != nil {
		return nil, err
	}
	return messages, nil
}

// Peek returns the messages for the category without clearing them.
func (s *Store) Peek(ctx router.Context, category string) []string {
	return s.load(ctx)[category]
}

// DrainAll removes and returns every queued message.
func (s *Store) DrainAll(ctx router.Context) (Container, error) {
	container := s.load(ctx)
	s.clear(ctx)

	if container.Empty() {
		return Container{}, nil
	}
	return container, nil
}

// load reads the cookie. A missing, tampered, or malformed container is
// treated as empty so stale client state never breaks a request.
func (s *Store) load(ctx router.Context) Container {
	container, err := s.codec.Decode(ctx.Cookies(s.cookieName))
	if err != nil {
		return Container{}
	}
	return container
}

func (s *Store) write(ctx router.Context, container Container) error {
	value, err := s.codec.Encode(container)
	if err != nil {
		return err
	}

	ctx.Cookie(&router.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
	})
	return nil
}

func (s *Store) clear(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
	})
}

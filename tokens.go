package accounts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

const resetKeyLength = 15

// ActivationCodec issues and verifies tamper-evident activation tokens.
// The payload is the email address plus an issued-at timestamp; the
// signature is an HMAC-SHA256 over the encoded payload. Tokens are
// URL-safe and stateless, so the TTL is the only replay bound.
type ActivationCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type activationPayload struct {
	Email    string `json:"e"`
	IssuedAt int64  `json:"iat"`
}

// DefaultActivationTTL bounds how long an activation link can be replayed.
const DefaultActivationTTL = 72 * time.Hour

// NewActivationCodec creates a codec with the given signing key. A zero
// ttl disables expiry.
func NewActivationCodec(key []byte, ttl time.Duration) *ActivationCodec {
	return &ActivationCodec{
		key: key,
		ttl: ttl,
		now: time.Now,
	}
}

// Issue signs an activation token for the email.
func (c *ActivationCodec) Issue(email string) (string, error) {
	if email == "" {
		return "", ErrInvalidToken
	}

	payload, err := json.Marshal(activationPayload{
		Email:    email,
		IssuedAt: c.now().Unix(),
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded), nil
}

// Verify checks the signature and TTL and returns the embedded email.
func (c *ActivationCodec) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return "", ErrInvalidToken
	}

	if !hmac.Equal([]byte(signature), []byte(c.sign(encoded))) {
		return "", ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}

	var payload activationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", ErrInvalidToken
	}

	if payload.Email == "" {
		return "", ErrInvalidToken
	}

	if c.ttl > 0 {
		issued := time.Unix(payload.IssuedAt, 0)
		if c.now().After(issued.Add(c.ttl)) {
			return "", ErrTokenExpired
		}
	}

	return payload.Email, nil
}

func (c *ActivationCodec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// NewResetKey generates the opaque secret persisted on an account during a
// password reset request. Verification is a store-level match of email and
// key, never a signature check.
func NewResetKey() (string, error) {
	return randomString(resetKeyLength, saltAlphabet)
}

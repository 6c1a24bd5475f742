package accounts

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	saltLength   = 8
	saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// DefaultBcryptCost balances login latency against brute-force cost.
const DefaultBcryptCost = 12

// AuthStatus is the tri-state outcome of a password authentication
// attempt. Lookup miss and wrong password stay distinguishable internally
// even though the boundary message is identical for both.
type AuthStatus int

const (
	// AuthNotFound means no account matched the email.
	AuthNotFound AuthStatus = iota
	// AuthWrongPassword means the account exists but the password did not
	// match, or the account has no password credential at all.
	AuthWrongPassword
	// AuthOK means the credential pair checked out.
	AuthOK
)

// Hasher salts and hashes password credentials.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher at DefaultBcryptCost.
func NewHasher() *Hasher {
	return &Hasher{cost: DefaultBcryptCost}
}

// WithCost overrides the bcrypt cost, mostly useful to speed up tests.
func (h *Hasher) WithCost(cost int) *Hasher {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		h.cost = cost
	}
	return h
}

// SetPassword generates a fresh salt and derives the stored hash from the
// salted plaintext. Both fields are replaced on every call.
func (h *Hasher) SetPassword(account *Account, plaintext string) error {
	if plaintext == "" {
		return errors.New("password must not be empty", errors.CategoryValidation)
	}

	salt, err := randomString(saltLength, saltAlphabet)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to generate password salt")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext+salt), h.cost)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	account.PasswordSalt = salt
	account.PasswordHash = string(hash)
	return nil
}

// Compare checks a candidate plaintext against the stored salt and hash.
func (h *Hasher) Compare(account *Account, plaintext string) bool {
	if account == nil || !account.HasPassword() {
		return false
	}
	err := bcrypt.CompareHashAndPassword(
		[]byte(account.PasswordHash),
		[]byte(plaintext+account.PasswordSalt),
	)
	return err == nil
}

// PasswordAuthenticator resolves an email/password pair to a tri-state
// outcome against the accounts store.
type PasswordAuthenticator struct {
	accounts Accounts
	hasher   *Hasher
}

// NewPasswordAuthenticator wires the store lookup and hash comparison.
func NewPasswordAuthenticator(accounts Accounts, hasher *Hasher) *PasswordAuthenticator {
	if hasher == nil {
		hasher = NewHasher()
	}
	return &PasswordAuthenticator{accounts: accounts, hasher: hasher}
}

// Authenticate looks up the account by email and verifies the password.
// The returned account is non-nil only for AuthOK.
func (p *PasswordAuthenticator) Authenticate(ctx context.Context, email, plaintext string) (AuthStatus, *Account, error) {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return AuthNotFound, nil, nil
		}
		return AuthNotFound, nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up account")
	}

	// An account without a password credential (federated-only) behaves
	// like a wrong password, not like a missing account.
	if !p.hasher.Compare(account, plaintext) {
		return AuthWrongPassword, nil, nil
	}

	return AuthOK, account, nil
}

func randomString(n int, alphabet string) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

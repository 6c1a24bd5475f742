package accounts

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Federated providers with first-class identifier columns on the account.
const (
	ProviderFacebook = "facebook"
	ProviderTwitter  = "twitter"
	ProviderGoogle   = "google"
)

// Account is the persisted identity record unifying password and
// federated credentials.
//
// The email, facebook_id, and twitter_id columns carry unique indexes so
// the store is the authority on identity uniqueness; application level
// checks are a fast-path rejection only.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID          uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name        string    `bun:"name,notnull" json:"name,omitempty"`
	CompanyName string    `bun:"company_name" json:"company_name,omitempty"`

	Email      string `bun:"email,nullzero,unique" json:"email,omitempty"`
	FacebookID string `bun:"facebook_id,nullzero,unique" json:"facebook_id,omitempty"`
	TwitterID  string `bun:"twitter_id,nullzero,unique" json:"twitter_id,omitempty"`

	// Do not set PasswordSalt or PasswordHash directly, use
	// Hasher.SetPassword instead.
	PasswordSalt string `bun:"password_salt" json:"-"`
	PasswordHash string `bun:"password_hash" json:"-"`

	Active    bool `bun:"active,notnull,default:false" json:"active"`
	Suspended bool `bun:"suspended,notnull,default:false" json:"suspended"`

	Locale   string `bun:"locale" json:"locale,omitempty"`
	Timezone string `bun:"timezone,notnull,default:'UTC'" json:"timezone,omitempty"`

	// ResetKey authorizes exactly one password change and is cleared in
	// the same transaction as the new password.
	ResetKey string `bun:"reset_key,nullzero" json:"-"`

	Profiles []*ProviderProfile `bun:"rel:has-many,join:id=account_id" json:"profiles,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Validate enforces that an account is reachable through at least one
// identity channel before it hits the store.
func (a *Account) Validate() error {
	if a.Email == "" && a.FacebookID == "" && a.TwitterID == "" {
		return errors.New(
			"account requires one of email, facebook id, or twitter id",
			errors.CategoryValidation,
		).WithTextCode(TextCodeNoIdentity)
	}
	return nil
}

// HasPassword reports whether a password credential has ever been set.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != "" && a.PasswordSalt != ""
}

// ProviderID returns the stored identifier for the given provider, if any.
func (a *Account) ProviderID(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderFacebook:
		return a.FacebookID
	case ProviderTwitter:
		return a.TwitterID
	case ProviderGoogle:
		// Google identities are keyed by email.
		return a.Email
	}
	return ""
}

// SetProviderID assigns the provider identifier column. Returns false when
// the provider has no identifier column on the account.
func (a *Account) SetProviderID(provider, id string) bool {
	switch strings.ToLower(provider) {
	case ProviderFacebook:
		a.FacebookID = id
	case ProviderTwitter:
		a.TwitterID = id
	case ProviderGoogle:
		return a.Email != ""
	default:
		return false
	}
	return true
}

// ProfileFor returns the loaded provider profile sub-record, if present.
func (a *Account) ProfileFor(provider string) *ProviderProfile {
	for _, p := range a.Profiles {
		if p != nil && strings.EqualFold(p.Provider, provider) {
			return p
		}
	}
	return nil
}

// Picture picks a profile picture for the account, preferring whatever a
// federated provider reported.
func (a *Account) Picture() string {
	for _, provider := range []string{ProviderFacebook, ProviderTwitter} {
		if p := a.ProfileFor(provider); p != nil && p.PictureURL != "" {
			return p.PictureURL
		}
	}
	return ""
}

// ProviderProfile holds the display attributes a federated provider
// reported for an account. Attributes are scoped per provider so two
// providers never collide on a key.
type ProviderProfile struct {
	bun.BaseModel `bun:"table:provider_profiles,alias:prf"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID      uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Provider       string     `bun:"provider,notnull" json:"provider,omitempty"`
	ProviderUserID string     `bun:"provider_user_id,notnull" json:"provider_user_id,omitempty"`
	DisplayName    string     `bun:"display_name" json:"display_name,omitempty"`
	PictureURL     string     `bun:"picture_url" json:"picture_url,omitempty"`
	Username       string     `bun:"username" json:"username,omitempty"`
	ProfileURL     string     `bun:"profile_url" json:"profile_url,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

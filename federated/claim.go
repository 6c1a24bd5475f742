package federated

import "context"

// Claim is the verified identity assertion a Provider hands back once its
// handshake completed. Handshake mechanics never leak past the Provider.
type Claim struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Username       string
	PictureURL     string
	ProfileURL     string
	Locale         string
	Raw            map[string]any
}

// Empty reports whether the claim is missing the attributes required to
// identify anyone.
func (c *Claim) Empty() bool {
	return c == nil || c.Provider == "" || c.ProviderUserID == ""
}

// Provider is an external identity provider.
type Provider interface {
	// Name returns the provider identifier (e.g. "facebook", "twitter").
	Name() string

	// AuthCodeURL returns the URL to redirect visitors to for authorization.
	// The state parameter must round-trip for CSRF protection.
	AuthCodeURL(state string) string

	// Authenticate trades the callback code for a verified identity claim.
	Authenticate(ctx context.Context, code string) (*Claim, error)
}

package google

import "github.com/goliatone/go-accounts/federated"

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// mapClaim normalizes a userinfo response. The email doubles as the
// provider user id because Google identities merge into accounts by email.
func mapClaim(info *googleUserInfo) *federated.Claim {
	if info == nil {
		return nil
	}

	return &federated.Claim{
		Provider:       "google",
		ProviderUserID: info.Email,
		Email:          info.Email,
		Name:           info.Name,
		PictureURL:     info.Picture,
		Locale:         info.Locale,
		Raw: map[string]any{
			"sub":            info.Sub,
			"email":          info.Email,
			"email_verified": info.EmailVerified,
			"name":           info.Name,
			"given_name":     info.GivenName,
			"family_name":    info.FamilyName,
			"picture":        info.Picture,
			"locale":         info.Locale,
		},
	}
}

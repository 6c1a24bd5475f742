package facebook

import "github.com/goliatone/go-accounts/federated"

type facebookProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Link    string `json:"link"`
	Locale  string `json:"locale"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func mapClaim(profile *facebookProfile) *federated.Claim {
	if profile == nil {
		return nil
	}

	return &federated.Claim{
		Provider:       "facebook",
		ProviderUserID: profile.ID,
		Email:          profile.Email,
		Name:           profile.Name,
		PictureURL:     profile.Picture.Data.URL,
		ProfileURL:     profile.Link,
		Locale:         profile.Locale,
		Raw: map[string]any{
			"id":     profile.ID,
			"name":   profile.Name,
			"email":  profile.Email,
			"link":   profile.Link,
			"locale": profile.Locale,
		},
	}
}

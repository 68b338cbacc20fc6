package auth

import "golang.org/x/oauth2/clientcredentials"

// Conf holds the OAuth2 client credentials workers present to the matrix and
// household servers. An empty ClientID disables authentication.
type Conf struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// Enabled reports whether credentials are configured.
func (c Conf) Enabled() bool { return c.ClientID != "" }

func (c Conf) Validate() error {
	if c.Enabled() && c.TokenURL == "" {
		return errMissingTokenURL
	}
	return nil
}

func (c *Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
}

package authinfo

import "encoding/json"

// Settings holds the raw OAuth2 client configuration. Every field may be empty.
type Settings struct {
	AccessTokenURI string
	ClientID       string
	Scope          string
}

// AuthInfo is the read-only view of the OAuth2 client configuration
// handed to the front-end.
type AuthInfo struct {
	issuer   string
	clientID string
	scope    string
}

// NewAuthInfo builds an AuthInfo from settings and reports the provider
// whose rule produced the issuer. ClientID and Scope are passed through verbatim.
func NewAuthInfo(settings Settings, resolver *Resolver) (AuthInfo, string) {
	issuer, provider := resolver.Issuer(settings.AccessTokenURI)
	return AuthInfo{
		issuer:   issuer,
		clientID: settings.ClientID,
		scope:    settings.Scope,
	}, provider
}

func (a AuthInfo) Issuer() string   { return a.issuer }
func (a AuthInfo) ClientID() string { return a.clientID }
func (a AuthInfo) Scope() string    { return a.scope }

type authInfoJSON struct {
	Issuer   string `json:"issuer"`
	ClientID string `json:"clientId"`
	Scope    string `json:"scope"`
}

// MarshalJSON implements json.Marshaler
func (a AuthInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(authInfoJSON{
		Issuer:   a.issuer,
		ClientID: a.clientID,
		Scope:    a.scope,
	})
}

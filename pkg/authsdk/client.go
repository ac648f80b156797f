package authsdk

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient talks to the token endpoints of a single Keycloak realm. It
// covers the grants the session layer issues directly; the interactive
// authorization code flow goes through golang.org/x/oauth2 in package sso.
type SDKClient struct {
	BaseURL    string
	Realm      string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for realm on the provider at baseURL.
func NewSDKClient(baseURL, realm string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Realm:   realm,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Issuer is the realm's OpenID Connect issuer, also the discovery base.
func (c *SDKClient) Issuer() string {
	return c.BaseURL + "/realms/" + url.PathEscape(c.Realm)
}

// TokenURL is the realm's token endpoint.
func (c *SDKClient) TokenURL() string {
	return c.Issuer() + "/protocol/openid-connect/token"
}

// RevokeURL is the realm's RFC 7009 revocation endpoint.
func (c *SDKClient) RevokeURL() string {
	return c.Issuer() + "/protocol/openid-connect/revoke"
}

// LogoutURL is the realm's RP-initiated logout endpoint.
func (c *SDKClient) LogoutURL() string {
	return c.Issuer() + "/protocol/openid-connect/logout"
}

// BuildLogoutURL constructs an RP-initiated logout URL. endpoint defaults to
// LogoutURL when the caller has nothing better from discovery.
func (c *SDKClient) BuildLogoutURL(endpoint, clientID, idTokenHint, postLogoutRedirectURI string) string {
	if endpoint == "" {
		endpoint = c.LogoutURL()
	}

	params := url.Values{}
	params.Set("client_id", clientID)
	if idTokenHint != "" {
		params.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirectURI != "" {
		params.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}

package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// PasswordGrant exchanges a username plus provider-specific assertion fields
// for tokens using the password grant. Keycloak realms configured for host
// app logins validate the extra fields (signature, auth date) in a custom
// authenticator instead of a password.
func (c *SDKClient) PasswordGrant(
	ctx context.Context,
	clientID, username string,
	extra url.Values,
) (*TokenResponse, error) {
	data := url.Values{}
	for k, v := range extra {
		data[k] = v
	}
	data.Set("grant_type", "password")
	data.Set("client_id", clientID)
	data.Set("username", username)

	return c.requestToken(ctx, data)
}

// RefreshGrant requests new tokens using a refresh token.
func (c *SDKClient) RefreshGrant(
	ctx context.Context,
	clientID, refreshToken string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
	}

	return c.requestToken(ctx, data)
}

// RevokeToken revokes a refresh token at the realm.
func (c *SDKClient) RevokeToken(ctx context.Context, clientID, token string) error {
	data := url.Values{
		"token":           {token},
		"client_id":       {clientID},
		"token_type_hint": {"refresh_token"},
	}

	resp, err := c.postForm(ctx, c.RevokeURL(), data)
	if err != nil {
		return err
	}

	return checkStatusOK(resp)
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, c.TokenURL(), data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &tokenResp, nil
}

func (c *SDKClient) postForm(ctx context.Context, endpoint string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

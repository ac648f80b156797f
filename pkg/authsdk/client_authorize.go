package authsdk

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"github.com/aussiebroadwan/aichef/pkg/cryptox"
)

// PKCEChallenge is an RFC 7636 verifier with its S256 challenge. The
// verifier stays with the pending login; the challenge goes on the
// authorization URL.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCEChallenge draws a 256-bit verifier and derives its challenge.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: S256(verifier),
		Method:    "S256",
	}, nil
}

// S256 is the PKCE transform of verifier.
func S256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ErrMissingCode is returned for a callback that has neither a code nor an
// error.
var ErrMissingCode = errors.New("authsdk: callback missing authorization code")

// CallbackError is returned when the provider redirected back with an
// error instead of a code (user cancelled, consent denied).
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("authorization error: %s - %s", e.Code, e.Description)
}

// AuthorizationResponse is what Keycloak appends to the redirect URI after
// a successful sign in.
type AuthorizationResponse struct {
	Code  string
	State string

	// SessionState identifies the Keycloak browser session.
	SessionState string

	// Issuer is the RFC 9207 iss parameter. Empty when the realm does not
	// send it.
	Issuer string
}

// ParseAuthorizationCallback reads the authorization response out of the
// URL the browser was redirected to.
//
//	resp, err := authsdk.ParseAuthorizationCallback("https://chef.local/v1/session/callback?code=xyz&state=abc")
//	if err != nil {
//	    // *CallbackError when the user denied or cancelled
//	}
//	// match resp.State to the pending login before exchanging resp.Code
func ParseAuthorizationCallback(callbackURL string) (*AuthorizationResponse, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback URL: %w", err)
	}
	q := u.Query()

	if code := q.Get("error"); code != "" {
		return nil, &CallbackError{Code: code, Description: q.Get("error_description")}
	}

	resp := &AuthorizationResponse{
		Code:         q.Get("code"),
		State:        q.Get("state"),
		SessionState: q.Get("session_state"),
		Issuer:       q.Get("iss"),
	}
	if resp.Code == "" {
		return nil, ErrMissingCode
	}
	return resp, nil
}

// HasAuthorizationResponse reports whether callbackURL carries an
// authorization response (a code or an error) worth completing.
func HasAuthorizationResponse(callbackURL string) bool {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get("code") != "" || q.Get("error") != ""
}

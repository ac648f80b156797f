// Package hostapp signs users in through an embedding host application
// (a messenger mini-app container) instead of a browser redirect.
package hostapp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/identity"
)

var (
	ErrExchange       = errors.New("hostapp: assertion exchange failed")
	ErrRenewal        = errors.New("hostapp: renewal failed")
	ErrNoRefreshToken = fmt.Errorf("%w: no refresh token", ErrRenewal)
)

// Assertion is the host-signed statement about the current user.
type Assertion struct {
	User     identity.HostUser
	AuthDate time.Time
	Hash     string
}

// Form returns the fields the realm's host-login authenticator expects next
// to the username.
func (a *Assertion) Form() url.Values {
	f := url.Values{
		"id":         {strconv.FormatInt(a.User.ID, 10)},
		"first_name": {a.User.FirstName},
		"auth_date":  {strconv.FormatInt(a.AuthDate.Unix(), 10)},
		"hash":       {a.Hash},
	}
	if a.User.LastName != "" {
		f.Set("last_name", a.User.LastName)
	}
	if a.User.PhotoURL != "" {
		f.Set("photo_url", a.User.PhotoURL)
	}
	return f
}

// FallbackToken is the unverified placeholder credential used when the
// exchange fails and the fallback is enabled. It is not a JWT.
func FallbackToken(u identity.HostUser, now time.Time) string {
	return fmt.Sprintf("embedded_%d_%d", u.ID, now.UnixMilli())
}

// Adapter detects the host container and trades its assertion for tokens.
type Adapter struct {
	runtime  Runtime
	client   *authsdk.SDKClient
	clientID string
}

func NewAdapter(runtime Runtime, client *authsdk.SDKClient, clientID string) *Adapter {
	if runtime == nil {
		runtime = NoHost
	}
	return &Adapter{runtime: runtime, client: client, clientID: clientID}
}

// Detect reports whether the process runs inside a host container.
func (a *Adapter) Detect() bool {
	_, ok := a.runtime.InitData()
	return ok
}

// ExtractAssertion reads the current user from the host. It returns nil
// without error when there is no container or the container has no user.
func (a *Adapter) ExtractAssertion() (*Assertion, error) {
	raw, ok := a.runtime.InitData()
	if !ok || raw == "" {
		return nil, nil
	}

	data, err := ParseInitData(raw)
	if err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, nil
	}

	return &Assertion{User: *data.User, AuthDate: data.AuthDate, Hash: data.Hash}, nil
}

// Exchange trades the assertion for realm tokens. The refresh token may be
// empty if the realm doesn't issue one.
func (a *Adapter) Exchange(ctx context.Context, as *Assertion) (*authsdk.TokenResponse, error) {
	tokens, err := a.client.PasswordGrant(ctx, a.clientID, as.User.Handle(), as.Form())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	return tokens, nil
}

// Renew uses refreshToken to obtain a fresh token pair.
func (a *Adapter) Renew(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	tokens, err := a.client.RefreshGrant(ctx, a.clientID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenewal, err)
	}
	return tokens, nil
}

// Revoke tells the realm to forget refreshToken.
func (a *Adapter) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return a.client.RevokeToken(ctx, a.clientID, refreshToken)
}

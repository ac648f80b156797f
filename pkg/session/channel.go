package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/credential"
	"github.com/aussiebroadwan/aichef/pkg/hostapp"
	"github.com/aussiebroadwan/aichef/pkg/identity"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
)

// SSO is the browser single sign-on adapter (*sso.Provider).
type SSO interface {
	Init(ctx context.Context, opts sso.InitOptions) (bool, error)
	LoginURL(ctx context.Context) (string, error)
	CompleteLogin(ctx context.Context, callbackURL string) error
	Logout(ctx context.Context) string
	Tokens() sso.Tokens
	IsTokenExpired() bool
	UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error)
}

// Host is the embedded host-app adapter (*hostapp.Adapter).
type Host interface {
	Detect() bool
	ExtractAssertion() (*hostapp.Assertion, error)
	Exchange(ctx context.Context, a *hostapp.Assertion) (*authsdk.TokenResponse, error)
	Renew(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// channel is the per-source behaviour, chosen once when the session
// settles so the controller never switches on Source.
type channel interface {
	source() Source
	renewKind() Kind

	// renew returns the new pair and whether it differs from cur.
	renew(ctx context.Context, trigger Trigger, cur credential.Pair) (credential.Pair, bool, error)

	// expired reports whether a request must renew before it is sent.
	expired() bool
	retryOnUnauthorized() bool

	profile(accessToken string) *identity.UserProfile
	logout(ctx context.Context, cur credential.Pair) string
}

type ssoChannel struct {
	p           SSO
	minValidity time.Duration
}

func (c *ssoChannel) source() Source { return SourceWebSSO }
func (c *ssoChannel) renewKind() Kind { return KindSSORenewal }
func (c *ssoChannel) expired() bool { return c.p.IsTokenExpired() }
func (c *ssoChannel) retryOnUnauthorized() bool { return true }
func (c *ssoChannel) profile(at string) *identity.UserProfile { return identity.FromToken(at) }

func (c *ssoChannel) renew(ctx context.Context, trigger Trigger, cur credential.Pair) (credential.Pair, bool, error) {
	minValidity := c.minValidity
	if trigger == TriggerUnauthorized {
		minValidity = -1
	}

	refreshed, err := c.p.UpdateToken(ctx, minValidity)
	if err != nil {
		return cur, false, err
	}
	if !refreshed {
		return cur, false, nil
	}

	t := c.p.Tokens()
	return credential.Pair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}, true, nil
}

func (c *ssoChannel) logout(ctx context.Context, _ credential.Pair) string {
	return c.p.Logout(ctx)
}

type embeddedChannel struct {
	h    Host
	user identity.HostUser
	log  *slog.Logger
}

func (c *embeddedChannel) source() Source { return SourceEmbedded }
func (c *embeddedChannel) renewKind() Kind { return KindRenewal }
func (c *embeddedChannel) expired() bool { return false }
func (c *embeddedChannel) retryOnUnauthorized() bool { return false }

// profile keeps the host's view of the user and lets the realm token
// override it where it has something to say. The fallback token decodes to
// nothing, leaving the host profile.
func (c *embeddedChannel) profile(at string) *identity.UserProfile {
	return identity.Merge(identity.FromHostUser(c.user), identity.FromToken(at))
}

// renew always goes to the realm, the embedded flow has no expiry
// bookkeeping of its own.
func (c *embeddedChannel) renew(ctx context.Context, _ Trigger, cur credential.Pair) (credential.Pair, bool, error) {
	tokens, err := c.h.Renew(ctx, cur.RefreshToken)
	if err != nil {
		return cur, false, err
	}
	return credential.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, true, nil
}

// logout revokes the refresh token on a best-effort basis. The local
// session ends regardless.
func (c *embeddedChannel) logout(ctx context.Context, cur credential.Pair) string {
	if cur.RefreshToken == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.h.Revoke(ctx, cur.RefreshToken); err != nil {
		c.log.Warn("refresh token revocation failed",
			slogx.Token("refresh_token", cur.RefreshToken),
			slogx.Err(err),
		)
	}
	return ""
}

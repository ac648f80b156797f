//go:build e2e

package session_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/hostapp"
	"github.com/aussiebroadwan/aichef/pkg/session"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
)

func newController(t *testing.T, cfg session.Config) *session.Controller {
	t.Helper()

	cfg.Logger = slogx.Discard()
	cfg.Ticks = make(chan time.Time)

	c := session.New(cfg)
	t.Cleanup(c.Close)
	c.Start(t.Context())
	return c
}

func hostPayload() string {
	return url.Values{
		"user":      {`{"id":42,"first_name":"Ann","username":"ann_tg"}`},
		"auth_date": {"1700000000"},
		"hash":      {"c0ffee"},
	}.Encode()
}

func TestSessionAgainstKeycloak(t *testing.T) {
	baseURL, cleanup := setupKeycloak(t)
	defer cleanup()

	sdk := authsdk.NewSDKClient(baseURL, realmName)
	require.NoError(t, sdk.Ping(t.Context()))

	t.Run("web sso login, renewal and logout", func(t *testing.T) {
		provider := sso.NewProvider(sso.Config{
			SDK:                   sdk,
			ClientID:              clientID,
			RedirectURL:           redirectURL,
			PostLogoutRedirectURL: "http://chef.local/",
		})
		c := newController(t, session.Config{SSO: provider})

		// No browser round-trip yet, so no session
		require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)

		loginURL, err := c.Login(t.Context())
		require.NoError(t, err)
		require.NoError(t, c.CompleteLogin(t.Context(), signIn(t, loginURL)))

		snap := c.Snapshot()
		require.True(t, snap.IsAuthenticated())
		require.Equal(t, session.SourceWebSSO, snap.Source)
		require.Equal(t, userName, snap.Profile.Username)
		require.Equal(t, userEmail, snap.Profile.Email)
		require.Equal(t, "Ann Lee", snap.Profile.Name)

		// A 401 forces a real refresh at the realm
		before := c.Credentials().AccessToken()
		require.NoError(t, c.Renew(t.Context(), session.TriggerUnauthorized))
		require.NotEqual(t, before, c.Credentials().AccessToken())
		require.True(t, c.Snapshot().IsAuthenticated())

		logoutURL := c.Logout(t.Context())
		require.True(t, strings.HasPrefix(logoutURL, sdk.LogoutURL()), logoutURL)
		require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)
		require.Empty(t, c.Credentials().AccessToken())
	})

	t.Run("stock realm rejects the host assertion", func(t *testing.T) {
		host := hostapp.NewAdapter(hostapp.StaticRuntime{Payload: hostPayload(), Present: true}, sdk, clientID)

		// Without the fallback the session fails
		strict := newController(t, session.Config{Host: host})
		snap := strict.Snapshot()
		require.Equal(t, session.StatusFailed, snap.Status)
		require.True(t, snap.HostContainer)
		require.True(t, session.IsKind(snap.Err, session.KindExchange))

		// With it the session starts unverified and has nothing to renew with
		lenient := newController(t, session.Config{Host: host, UnverifiedFallback: true})
		snap = lenient.Snapshot()
		require.True(t, snap.IsAuthenticated())
		require.Equal(t, session.SourceEmbedded, snap.Source)
		require.True(t, strings.HasPrefix(lenient.Credentials().AccessToken(), "embedded_42_"))

		err := lenient.Renew(t.Context(), session.TriggerTimer)
		require.Error(t, err)
		require.Equal(t, session.StatusUnauthenticated, lenient.Snapshot().Status)
	})
}

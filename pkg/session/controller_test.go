package session_test

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/credential"
	"github.com/aussiebroadwan/aichef/pkg/hostapp"
	"github.com/aussiebroadwan/aichef/pkg/identity"
	"github.com/aussiebroadwan/aichef/pkg/session"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
	"github.com/aussiebroadwan/aichef/pkg/sso/ssotest"
	"github.com/stretchr/testify/require"
)

var hostUser = &identity.HostUser{ID: 42, FirstName: "Ann", Username: "ann_tg", PhotoURL: "https://t.me/i/ann.jpg"}

type recorder struct {
	mu    sync.Mutex
	snaps []session.Snapshot
}

func (r *recorder) OnChange(s session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func start(t *testing.T, cfg session.Config) *session.Controller {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = slogx.Discard()
	}
	if cfg.Ticks == nil {
		// Never fires, tests drive renewals by hand unless they say otherwise
		cfg.Ticks = make(chan time.Time)
	}

	c := session.New(cfg)
	t.Cleanup(c.Close)
	c.Start(t.Context())
	return c
}

func TestStartHostContainerSkipsSSO(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	host := &fakeHost{detected: true, user: hostUser, refresh: "host-rt"}

	c := start(t, session.Config{SSO: fs, Host: host})

	snap := c.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Equal(t, session.SourceEmbedded, snap.Source)
	require.True(t, snap.HostContainer)
	require.Equal(t, "host-rt", c.Credentials().Pair().RefreshToken)

	// The host payload has no token claims, so the host profile survives
	require.Equal(t, "ann_tg", snap.Profile.Username)
	require.Equal(t, "Ann", snap.Profile.Name)
	require.Equal(t, "https://t.me/i/ann.jpg", snap.Profile.PictureURL)

	initCalls, loginCalls, _, _ := fs.counts()
	require.Zero(t, initCalls, "web sso must not run inside a host container")
	require.Zero(t, loginCalls)
}

func TestStartHostContainerWithoutUser(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	c := start(t, session.Config{SSO: fs, Host: &fakeHost{detected: true}})

	snap := c.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	require.Equal(t, session.SourceNone, snap.Source)
	require.True(t, snap.HostContainer)

	u, err := c.Login(t.Context())
	require.NoError(t, err)
	require.Empty(t, u, "there is no browser to send anywhere")

	initCalls, loginCalls, _, _ := fs.counts()
	require.Zero(t, initCalls)
	require.Zero(t, loginCalls)
}

func TestStartWithoutSession(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	rec := &recorder{}
	c := start(t, session.Config{SSO: fs, Host: &fakeHost{}, OnChange: rec.OnChange})

	snap := c.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	require.False(t, snap.IsLoading())
	require.False(t, snap.HostContainer)
	require.Nil(t, snap.Profile)
	require.True(t, c.Credentials().Pair().Empty())

	// A silent check never starts an interactive login by itself
	_, loginCalls, _, _ := fs.counts()
	require.Zero(t, loginCalls)

	// authenticating, then unauthenticated
	require.Equal(t, 2, rec.count())
	require.Equal(t, session.StatusAuthenticating, rec.snaps[0].Status)

	u, err := c.Login(t.Context())
	require.NoError(t, err)
	require.Equal(t, "https://idp/auth?state=s", u)
}

func TestStartWithoutAnyProvider(t *testing.T) {
	t.Parallel()

	c := start(t, session.Config{})
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)

	_, err := c.Login(t.Context())
	require.ErrorIs(t, err, session.ErrNoSSO)
}

func TestStartExistingSSOSession(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	c := start(t, session.Config{SSO: fs})

	snap := c.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, session.SourceWebSSO, snap.Source)
	require.Equal(t, "ann", snap.Profile.Username)
	require.Equal(t, "ann@x.com", snap.Profile.Email)
	require.Equal(t, fs.Tokens().AccessToken, c.Credentials().AccessToken())
	require.Equal(t, "rt-ann", c.Credentials().Pair().RefreshToken)
	require.True(t, c.RetriesUnauthorized())
}

func TestStartInitFailure(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.initErr = errProvider
	c := start(t, session.Config{SSO: fs})

	snap := c.Snapshot()
	require.Equal(t, session.StatusFailed, snap.Status)
	require.False(t, snap.IsLoading())
	require.False(t, snap.IsAuthenticated())
	require.True(t, session.IsKind(snap.Err, session.KindInitialization))
	require.ErrorIs(t, snap.Err, errProvider)
	require.NotEmpty(t, snap.Error)
}

func TestStartUndecodableSSOToken(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.found = true
	fs.tokens = sso.Tokens{AccessToken: "opaque", RefreshToken: "rt"}
	c := start(t, session.Config{SSO: fs})

	snap := c.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Nil(t, snap.Profile)
	require.True(t, session.IsKind(snap.Err, session.KindDecode))
	require.Equal(t, "opaque", c.Credentials().AccessToken())
}

func TestExchangeFallback(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)
	host := &fakeHost{detected: true, user: hostUser, exchangeErr: errProvider}

	c := start(t, session.Config{
		Host:               host,
		UnverifiedFallback: true,
		Now:                func() time.Time { return now },
	})

	snap := c.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	require.Equal(t, session.SourceEmbedded, snap.Source)
	require.NoError(t, snap.Err)
	require.Equal(t, "ann_tg", snap.Profile.Username)

	pair := c.Credentials().Pair()
	require.Equal(t, "embedded_42_1700000000123", pair.AccessToken)
	require.Empty(t, pair.RefreshToken)
}

func TestExchangeFailureWithoutFallback(t *testing.T) {
	t.Parallel()

	host := &fakeHost{detected: true, user: hostUser, exchangeErr: errProvider}
	c := start(t, session.Config{Host: host})

	snap := c.Snapshot()
	require.Equal(t, session.StatusFailed, snap.Status)
	require.True(t, session.IsKind(snap.Err, session.KindExchange))
	require.ErrorIs(t, snap.Err, hostapp.ErrExchange)
	require.True(t, c.Credentials().Pair().Empty())
}

func TestTimerRenewalWithoutRefreshTokenSignsOut(t *testing.T) {
	t.Parallel()

	ticks := make(chan time.Time)
	host := &fakeHost{detected: true, user: hostUser, exchangeErr: errProvider}
	c := start(t, session.Config{Host: host, UnverifiedFallback: true, Ticks: ticks})

	require.True(t, c.Snapshot().IsAuthenticated())

	ticks <- time.Now()

	require.Eventually(t, func() bool {
		return c.Snapshot().Status == session.StatusUnauthenticated
	}, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	require.True(t, session.IsKind(snap.Err, session.KindRenewal))
	require.ErrorIs(t, snap.Err, hostapp.ErrNoRefreshToken)
	require.Equal(t, session.SourceNone, snap.Source)
	require.True(t, c.Credentials().Pair().Empty())
	require.Equal(t, 1, host.renewals())
}

func TestTimerRenewalKeepsValidSSOToken(t *testing.T) {
	t.Parallel()

	ticks := make(chan time.Time)
	fs := newFakeSSO(t)
	fs.signIn("ann")
	before := fs.Tokens().AccessToken

	c := start(t, session.Config{SSO: fs, Ticks: ticks, MinValidity: 45 * time.Second})

	// The worker takes the second tick only after the first one is done
	ticks <- time.Now()
	ticks <- time.Now()

	_, _, updates, _ := fs.counts()
	require.GreaterOrEqual(t, updates, 1)

	fs.mu.Lock()
	require.Equal(t, 45*time.Second, fs.lastMinValid)
	fs.mu.Unlock()

	require.True(t, c.Snapshot().IsAuthenticated())
	require.Equal(t, before, c.Credentials().AccessToken())
}

func TestTimerIgnoresSignedOutSession(t *testing.T) {
	t.Parallel()

	ticks := make(chan time.Time)
	fs := newFakeSSO(t)
	c := start(t, session.Config{SSO: fs, Ticks: ticks})

	ticks <- time.Now()
	ticks <- time.Now()

	_, _, updates, _ := fs.counts()
	require.Zero(t, updates)
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)
}

func TestRenewUpdatesCredentialsAndProfile(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	rec := &recorder{}
	c := start(t, session.Config{SSO: fs, OnChange: rec.OnChange})
	seen := rec.count()

	fs.mu.Lock()
	fs.expired = true
	fs.mu.Unlock()
	require.True(t, c.TokenExpired())

	require.NoError(t, c.Renew(t.Context(), session.TriggerExpired))

	require.False(t, c.TokenExpired())
	require.Equal(t, fs.Tokens().AccessToken, c.Credentials().AccessToken())
	require.Equal(t, "rt-ann", c.Credentials().Pair().RefreshToken)
	require.Equal(t, "ann2", c.Snapshot().Profile.Username)
	require.Equal(t, seen+1, rec.count())
}

func TestRenewUnauthorizedForcesRefresh(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	c := start(t, session.Config{SSO: fs})
	before := c.Credentials().AccessToken()

	require.NoError(t, c.Renew(t.Context(), session.TriggerUnauthorized))

	fs.mu.Lock()
	require.Negative(t, fs.lastMinValid)
	fs.mu.Unlock()
	require.NotEqual(t, before, c.Credentials().AccessToken())
}

func TestRenewSignedOut(t *testing.T) {
	t.Parallel()

	c := start(t, session.Config{SSO: newFakeSSO(t)})
	require.ErrorIs(t, c.Renew(t.Context(), session.TriggerExpired), session.ErrNotAuthenticated)
}

func TestConcurrentRenewalsShareOneCall(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	c := start(t, session.Config{SSO: fs})

	release := make(chan struct{})
	entered := make(chan struct{}, 16)
	fs.mu.Lock()
	fs.block, fs.entered = release, entered
	fs.mu.Unlock()

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		failed  atomic.Int32
	)
	started.Add(callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			if err := c.Renew(t.Context(), session.TriggerUnauthorized); err != nil {
				failed.Add(1)
			}
		}()
	}

	<-entered
	started.Wait()
	// Give the stragglers time to join the flight that is already blocked
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	_, _, updates, _ := fs.counts()
	require.Equal(t, 1, updates)
	require.Zero(t, failed.Load())
}

func TestSSORenewalFailureSignsOut(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	fs.updateErr = errProvider
	c := start(t, session.Config{SSO: fs})

	err := c.Renew(t.Context(), session.TriggerUnauthorized)
	require.True(t, session.IsKind(err, session.KindSSORenewal))
	require.ErrorIs(t, err, errProvider)

	snap := c.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	require.Equal(t, session.SourceNone, snap.Source)
	require.Nil(t, snap.Profile)
	require.True(t, session.IsKind(snap.Err, session.KindSSORenewal))
	require.True(t, c.Credentials().Pair().Empty())

	_, _, _, logouts := fs.counts()
	require.Equal(t, 1, logouts, "provider state is dropped too")
}

func TestEmbeddedRenewalKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	host := &fakeHost{detected: true, user: hostUser, refresh: "host-rt"}
	c := start(t, session.Config{Host: host})

	require.NoError(t, c.Renew(t.Context(), session.TriggerTimer))
	require.NoError(t, c.Renew(t.Context(), session.TriggerTimer))

	// Embedded renewals don't check expiry first, every call hits the realm
	require.Equal(t, 2, host.renewals())
	require.Equal(t, credential.Pair{AccessToken: "host-at-2", RefreshToken: "host-rt"}, c.Credentials().Pair())
	require.False(t, c.RetriesUnauthorized())
	require.False(t, c.TokenExpired())
}

func TestLogoutSSO(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	c := start(t, session.Config{SSO: fs})

	u := c.Logout(t.Context())
	require.True(t, strings.HasPrefix(u, "https://idp/logout"))

	snap := c.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	require.NoError(t, snap.Err)
	require.True(t, c.Credentials().Pair().Empty())

	// A second logout has nothing left to end
	require.Empty(t, c.Logout(t.Context()))
	_, _, _, logouts := fs.counts()
	require.Equal(t, 1, logouts)
}

func TestLogoutEmbeddedRevokes(t *testing.T) {
	t.Parallel()

	host := &fakeHost{detected: true, user: hostUser, refresh: "host-rt"}
	c := start(t, session.Config{Host: host})

	require.Empty(t, c.Logout(t.Context()))
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)
	require.True(t, c.Snapshot().HostContainer)
	require.True(t, c.Credentials().Pair().Empty())

	host.mu.Lock()
	defer host.mu.Unlock()
	require.Equal(t, []string{"host-rt"}, host.revoked)
}

func TestCompleteLogin(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	c := start(t, session.Config{SSO: fs})
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)

	require.NoError(t, c.CompleteLogin(t.Context(), "https://chef.local/cb?code=c&state=s"))

	snap := c.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, session.SourceWebSSO, snap.Source)
	require.Equal(t, "ann", snap.Profile.Username)
}

func TestCompleteLoginFailureKeepsState(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.completeErr = errProvider
	c := start(t, session.Config{SSO: fs})

	err := c.CompleteLogin(t.Context(), "https://chef.local/cb?code=c&state=s")
	require.True(t, session.IsKind(err, session.KindExchange))
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)
}

func TestCompleteLoginInsideHost(t *testing.T) {
	t.Parallel()

	c := start(t, session.Config{SSO: newFakeSSO(t), Host: &fakeHost{detected: true}})
	require.ErrorIs(t, c.CompleteLogin(t.Context(), "https://chef.local/cb"), session.ErrHostContainer)
}

func TestNothingHappensAfterClose(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	fs.signIn("ann")
	rec := &recorder{}
	c := start(t, session.Config{SSO: fs, OnChange: rec.OnChange})
	seen := rec.count()

	c.Close()
	c.Close()

	require.ErrorIs(t, c.Renew(t.Context(), session.TriggerUnauthorized), session.ErrClosed)
	require.ErrorIs(t, c.CompleteLogin(t.Context(), "https://chef.local/cb"), session.ErrClosed)
	c.Logout(t.Context())

	require.Equal(t, seen, rec.count(), "no callbacks after close")
	_, _, updates, _ := fs.counts()
	require.Zero(t, updates)
}

func TestStartOnlyOnce(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	c := start(t, session.Config{SSO: fs})
	c.Start(t.Context())
	require.NoError(t, c.Wait(t.Context()))

	initCalls, _, _, _ := fs.counts()
	require.Equal(t, 1, initCalls)
}

func TestStartAfterClose(t *testing.T) {
	t.Parallel()

	fs := newFakeSSO(t)
	c := session.New(session.Config{SSO: fs, Logger: slogx.Discard()})
	c.Close()
	c.Start(t.Context())

	require.NoError(t, c.Wait(t.Context()))
	initCalls, _, _, _ := fs.counts()
	require.Zero(t, initCalls)
	require.Equal(t, session.StatusUninitialized, c.Snapshot().Status)
	require.True(t, c.Snapshot().IsLoading())
}

// The rest run the real adapters against an in-process realm.

func TestWebSSOAgainstRealm(t *testing.T) {
	t.Parallel()

	realm := ssotest.NewServer(t)
	p := sso.NewProvider(sso.Config{
		SDK:         authsdk.NewSDKClient(realm.URL, ssotest.Realm),
		ClientID:    ssotest.ClientID,
		RedirectURL: "https://chef.local/v1/session/callback",
	})
	c := start(t, session.Config{SSO: p})
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)

	loginURL, err := c.Login(t.Context())
	require.NoError(t, err)
	callback, err := realm.Authorize(loginURL)
	require.NoError(t, err)
	require.NoError(t, c.CompleteLogin(t.Context(), callback))

	snap := c.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, "ann", snap.Profile.Username)
	require.True(t, snap.Profile.HasRole("cook"))

	before := c.Credentials().AccessToken()
	require.NoError(t, c.Renew(t.Context(), session.TriggerUnauthorized))
	require.Equal(t, 1, realm.RefreshCalls())
	require.NotEqual(t, before, c.Credentials().AccessToken())

	realm.SetFailRefresh(true)
	err = c.Renew(t.Context(), session.TriggerUnauthorized)
	require.True(t, session.IsKind(err, session.KindSSORenewal))
	require.Equal(t, session.StatusUnauthenticated, c.Snapshot().Status)
}

func TestEmbeddedAgainstRealm(t *testing.T) {
	t.Parallel()

	realm := ssotest.NewServer(t)
	payload := url.Values{
		"user":      {`{"id":42,"first_name":"Ann","username":"ann_tg","photo_url":"https://t.me/i/ann.jpg"}`},
		"auth_date": {"1700000000"},
		"hash":      {"c0ffee"},
	}.Encode()

	host := hostapp.NewAdapter(
		hostapp.StaticRuntime{Payload: payload, Present: true},
		authsdk.NewSDKClient(realm.URL, ssotest.Realm),
		ssotest.ClientID,
	)
	c := start(t, session.Config{Host: host})

	snap := c.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, session.SourceEmbedded, snap.Source)
	require.Equal(t, 1, realm.PasswordCalls())
	require.Equal(t, "ann_tg", realm.LastForm().Get("username"))

	// Realm claims win, the host photo beats the realm's identicon
	require.Equal(t, "ann", snap.Profile.Username)
	require.Equal(t, "https://t.me/i/ann.jpg", snap.Profile.PictureURL)

	rt := c.Credentials().Pair().RefreshToken
	require.NotEmpty(t, rt)

	require.NoError(t, c.Renew(t.Context(), session.TriggerTimer))
	require.Equal(t, 1, realm.RefreshCalls())

	c.Logout(t.Context())
	require.Len(t, realm.Revoked(), 1)
	require.NotEqual(t, rt, realm.Revoked()[0], "the rotated token is the one revoked")
}

func TestEmbeddedFallbackAgainstRealm(t *testing.T) {
	t.Parallel()

	realm := ssotest.NewServer(t)
	realm.SetFailPassword(true)
	payload := url.Values{"user": {`{"id":7,"first_name":"Bo"}`}, "hash": {"x"}}.Encode()

	host := hostapp.NewAdapter(
		hostapp.StaticRuntime{Payload: payload, Present: true},
		authsdk.NewSDKClient(realm.URL, ssotest.Realm),
		ssotest.ClientID,
	)
	c := start(t, session.Config{Host: host, UnverifiedFallback: true})

	require.True(t, c.Snapshot().IsAuthenticated())
	require.True(t, strings.HasPrefix(c.Credentials().AccessToken(), "embedded_7_"))

	err := c.Renew(t.Context(), session.TriggerTimer)
	require.True(t, errors.Is(err, hostapp.ErrNoRefreshToken))
	require.Zero(t, realm.RefreshCalls())
}

// Package session owns the lifecycle of the user's credentials: picking the
// identity source at start, keeping the bearer token fresh, and tearing the
// session down on logout or unrecoverable renewal failure.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/aichef/pkg/credential"
	"github.com/aussiebroadwan/aichef/pkg/hostapp"
	"github.com/aussiebroadwan/aichef/pkg/identity"
	"github.com/aussiebroadwan/aichef/pkg/metricsx"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
)

const (
	DefaultRenewalInterval = 5 * time.Minute
	DefaultMinValidity     = 30 * time.Second
)

// Config wires a Controller. SSO and Host are both optional; with neither
// the session settles unauthenticated.
type Config struct {
	SSO         SSO
	Host        Host
	Credentials *credential.Store

	// CallbackURL is offered to the silent SSO check at start, for a
	// process launched straight from the provider redirect.
	CallbackURL string

	RenewalInterval time.Duration
	MinValidity     time.Duration

	// UnverifiedFallback lets an embedded session start with a synthetic,
	// unverified credential when the assertion exchange fails.
	UnverifiedFallback bool

	Logger  *slog.Logger
	Metrics *metricsx.Metrics
	Now     func() time.Time

	// Ticks replaces the renewal ticker.
	Ticks <-chan time.Time

	// OnChange observes state changes. It runs outside the controller lock
	// and never after Close returns.
	OnChange func(Snapshot)
}

// Controller is the single owner of the session state and the only writer
// of the credential store.
type Controller struct {
	cfg   Config
	creds *credential.Store
	log   *slog.Logger

	startOnce sync.Once
	ready     chan struct{}

	mu      sync.RWMutex
	status  Status
	ch      channel
	profile *identity.UserProfile
	host    bool
	lastErr error
	gen     uint64

	renewals singleflight.Group

	lifeMu      sync.Mutex
	closeOnce   sync.Once
	closed      atomic.Bool
	loopRunning bool
	loopCtx     context.Context
	loopCancel  context.CancelFunc
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func New(cfg Config) *Controller {
	if cfg.Credentials == nil {
		cfg.Credentials = credential.NewStore()
	}
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = DefaultRenewalInterval
	}
	if cfg.MinValidity <= 0 {
		cfg.MinValidity = DefaultMinValidity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	log := cfg.Logger.With("component", "session")
	loopCtx, cancel := context.WithCancel(slogx.WithContext(context.Background(), log))

	return &Controller{
		cfg:        cfg,
		creds:      cfg.Credentials,
		log:        log,
		ready:      make(chan struct{}),
		loopCtx:    loopCtx,
		loopCancel: cancel,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Credentials is the read-only view of the held tokens.
func (c *Controller) Credentials() credential.Reader { return c.creds }

// Start decides the identity source and starts the renewal worker. Only
// the first call does anything; it blocks until the session settles.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		defer close(c.ready)

		if c.closed.Load() {
			return
		}
		c.initialize(slogx.WithContext(ctx, c.log))
		c.startLoop()
	})
}

// Wait blocks until Start has settled the session.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the renewal worker and waits for it. Renewals requested
// afterwards fail with ErrClosed.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.lifeMu.Lock()
		c.closed.Store(true)
		running := c.loopRunning
		c.lifeMu.Unlock()

		c.loopCancel()
		close(c.stopCh)
		if running {
			<-c.doneCh
		}
	})
}

// Snapshot returns a consistent copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:        c.status,
		Source:        SourceNone,
		Profile:       c.profile,
		HostContainer: c.host,
		Err:           c.lastErr,
	}
	if c.ch != nil {
		s.Source = c.ch.source()
	}
	if s.Err != nil {
		s.Error = s.Err.Error()
	}
	return s
}

// TokenExpired reports whether an outgoing request has to renew first.
func (c *Controller) TokenExpired() bool {
	c.mu.RLock()
	ch, st := c.ch, c.status
	c.mu.RUnlock()
	return st == StatusAuthenticated && ch != nil && ch.expired()
}

// RetriesUnauthorized reports whether a 401 should trigger one forced
// renewal and retry.
func (c *Controller) RetriesUnauthorized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusAuthenticated && c.ch != nil && c.ch.retryOnUnauthorized()
}

func (c *Controller) initialize(ctx context.Context) {
	c.settle(StatusAuthenticating, nil, nil, nil)

	if c.cfg.Host != nil && c.cfg.Host.Detect() {
		c.mu.Lock()
		c.host = true
		c.mu.Unlock()

		c.initEmbedded(ctx)
		return
	}

	if c.cfg.SSO == nil {
		c.settle(StatusUnauthenticated, nil, nil, nil)
		return
	}

	found, err := c.cfg.SSO.Init(ctx, sso.InitOptions{CallbackURL: c.cfg.CallbackURL})
	if err != nil {
		c.fail(&Error{Kind: KindInitialization, Source: SourceWebSSO, Err: err})
		return
	}
	if !found {
		c.settle(StatusUnauthenticated, nil, nil, nil)
		return
	}

	c.adoptSSO()
}

func (c *Controller) initEmbedded(ctx context.Context) {
	as, err := c.cfg.Host.ExtractAssertion()
	if err != nil {
		c.fail(&Error{Kind: KindInitialization, Source: SourceEmbedded, Err: err})
		return
	}
	if as == nil {
		c.log.Info("host container without a user, staying signed out")
		c.settle(StatusUnauthenticated, nil, nil, nil)
		return
	}

	pair, err := c.exchange(ctx, as)
	if err != nil {
		c.fail(err)
		return
	}

	c.creds.Replace(pair)
	ch := &embeddedChannel{h: c.cfg.Host, user: as.User, log: c.log}
	c.settle(StatusAuthenticated, ch, ch.profile(pair.AccessToken), nil)
}

func (c *Controller) exchange(ctx context.Context, as *hostapp.Assertion) (credential.Pair, error) {
	tokens, err := c.cfg.Host.Exchange(ctx, as)
	if err == nil {
		return credential.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
	}

	if !c.cfg.UnverifiedFallback {
		return credential.Pair{}, &Error{Kind: KindExchange, Source: SourceEmbedded, Err: err}
	}

	c.log.Warn("assertion exchange failed, continuing with an unverified credential",
		"host_user_id", as.User.ID,
		slogx.Err(err),
	)
	return credential.Pair{AccessToken: hostapp.FallbackToken(as.User, c.cfg.Now())}, nil
}

// adoptSSO takes over the provider's tokens as the session credentials.
func (c *Controller) adoptSSO() {
	t := c.cfg.SSO.Tokens()
	pair := credential.Pair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	ch := &ssoChannel{p: c.cfg.SSO, minValidity: c.cfg.MinValidity}

	c.creds.Replace(pair)
	profile, err := c.decode(ch, pair.AccessToken)
	c.settle(StatusAuthenticated, ch, profile, err)
}

// decode derives the profile. A token that doesn't decode leaves the
// session usable with no profile.
func (c *Controller) decode(ch channel, accessToken string) (*identity.UserProfile, error) {
	p := ch.profile(accessToken)
	if p != nil {
		return p, nil
	}

	c.log.Warn("access token claims could not be decoded", "source", ch.source().String())
	return nil, &Error{Kind: KindDecode, Source: ch.source(), Err: errUndecodable}
}

func (c *Controller) fail(err error) {
	c.log.Error("session initialization failed", slogx.Err(err))
	c.creds.Clear()
	c.settle(StatusFailed, nil, nil, err)
}

// settle replaces the session state wholesale.
func (c *Controller) settle(st Status, ch channel, profile *identity.UserProfile, err error) {
	c.mu.Lock()
	c.status = st
	c.ch = ch
	c.profile = profile
	c.lastErr = err
	c.gen++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
}

func (c *Controller) changed(snap Snapshot) {
	c.cfg.Metrics.Transition(snap.Status.String())
	c.log.Info("session state",
		"status", snap.Status.String(),
		"source", snap.Source.String(),
		"host_container", snap.HostContainer,
	)
	c.notify(snap)
}

func (c *Controller) notify(snap Snapshot) {
	if c.cfg.OnChange == nil || c.closed.Load() {
		return
	}
	c.cfg.OnChange(snap)
}

// Login returns the URL to send the browser to. Inside a host container or
// with an embedded session there is nothing to do and the URL is empty.
func (c *Controller) Login(ctx context.Context) (string, error) {
	snap := c.Snapshot()
	if snap.HostContainer || snap.Source == SourceEmbedded {
		return "", nil
	}
	if c.cfg.SSO == nil {
		return "", ErrNoSSO
	}

	u, err := c.cfg.SSO.LoginURL(ctx)
	if err != nil {
		return "", &Error{Kind: KindInitialization, Source: SourceWebSSO, Err: err}
	}
	return u, nil
}

// CompleteLogin finishes a browser login from the provider callback URL.
// On failure the session is left as it was.
func (c *Controller) CompleteLogin(ctx context.Context, callbackURL string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.Snapshot().HostContainer {
		return ErrHostContainer
	}
	if c.cfg.SSO == nil {
		return ErrNoSSO
	}

	if err := c.cfg.SSO.CompleteLogin(ctx, callbackURL); err != nil {
		return &Error{Kind: KindExchange, Source: SourceWebSSO, Err: err}
	}

	c.adoptSSO()
	return nil
}

// Logout ends the session. For web SSO it returns the provider URL that
// ends the provider session too; embedded sessions revoke their refresh
// token instead and return "".
func (c *Controller) Logout(ctx context.Context) string {
	c.mu.Lock()
	ch := c.ch
	pair := c.creds.Pair()
	c.creds.Clear()
	c.status = StatusUnauthenticated
	c.ch = nil
	c.profile = nil
	c.lastErr = nil
	c.gen++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)

	if ch == nil {
		return ""
	}
	return ch.logout(ctx, pair)
}

// endSession signs out after a failed renewal, unless the session already
// moved on since gen.
func (c *Controller) endSession(ctx context.Context, gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	ch := c.ch
	c.creds.Clear()
	c.status = StatusUnauthenticated
	c.ch = nil
	c.profile = nil
	c.lastErr = cause
	c.gen++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	// The refresh token is already dead, only local provider state needs
	// dropping.
	if ch != nil {
		_ = ch.logout(ctx, credential.Pair{})
	}
	c.changed(snap)
}

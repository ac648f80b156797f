// Package sso drives browser single sign-on against an OpenID Connect
// provider: discovery, authorization code with PKCE, silent session check,
// token renewal and RP-initiated logout.
package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/cryptox"
	"github.com/aussiebroadwan/aichef/pkg/jwtx"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
)

var (
	ErrDiscovery        = errors.New("sso: provider discovery failed")
	ErrStateMismatch    = errors.New("sso: callback state does not match a pending login")
	ErrNotAuthenticated = errors.New("sso: no active session")
	ErrNoRefreshToken   = errors.New("sso: no refresh token")
	ErrRefresh          = errors.New("sso: token refresh failed")
	ErrExchange         = errors.New("sso: code exchange failed")
	ErrIDToken          = errors.New("sso: id token rejected")
)

// Config describes one client registration at one realm.
type Config struct {
	SDK          *authsdk.SDKClient
	ClientID     string
	ClientSecret string

	// RedirectURL is where the provider sends the browser back to.
	RedirectURL           string
	PostLogoutRedirectURL string
	Scopes                []string

	Pending    PendingStore
	PendingTTL time.Duration

	// HTTPClient is used for discovery, key fetches and token calls.
	HTTPClient *http.Client
	Now        func() time.Time
}

// InitOptions carries what the silent check can use.
type InitOptions struct {
	// CallbackURL is the URL the browser landed on, if it just came back
	// from the provider.
	CallbackURL string
}

// Tokens is the provider token state.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// Provider is the identity-provider adapter. Discovery happens lazily on
// first use so a process can start while the provider is down.
type Provider struct {
	cfg Config

	discoverMu sync.Mutex
	oidc       *oidc.Provider
	verifier   *oidc.IDTokenVerifier
	oauth      *oauth2.Config
	endSession string

	mu      sync.RWMutex
	token   *oauth2.Token
	idToken string
	gen     uint64
}

func NewProvider(cfg Config) *Provider {
	if cfg.Pending == nil {
		cfg.Pending = NewMemoryPendingStore()
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = cfg.SDK.HTTPClient
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) clientCtx(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.cfg.HTTPClient)
}

// discover fetches the provider metadata once. Failures are not cached so a
// later call can succeed.
func (p *Provider) discover(ctx context.Context) (*oauth2.Config, error) {
	p.discoverMu.Lock()
	defer p.discoverMu.Unlock()

	if p.oauth != nil {
		return p.oauth, nil
	}

	provider, err := oidc.NewProvider(p.clientCtx(ctx), p.cfg.SDK.Issuer())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	var meta struct {
		EndSession string `json:"end_session_endpoint"`
	}
	_ = provider.Claims(&meta)

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	p.oidc = provider
	p.verifier = provider.Verifier(&oidc.Config{ClientID: p.cfg.ClientID, Now: p.cfg.Now})
	p.endSession = meta.EndSession
	p.oauth = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       p.cfg.Scopes,
	}

	return p.oauth, nil
}

// Init discovers the provider and runs the silent session check. It never
// prompts: when the browser didn't just come back from the provider there
// is no session to find and Init reports false.
func (p *Provider) Init(ctx context.Context, opts InitOptions) (bool, error) {
	if _, err := p.discover(ctx); err != nil {
		return false, err
	}

	if p.HasToken() {
		return true, nil
	}

	if !authsdk.HasAuthorizationResponse(opts.CallbackURL) {
		return false, nil
	}

	if err := p.CompleteLogin(ctx, opts.CallbackURL); err != nil {
		// A stale or cancelled callback is just "no session".
		slogx.FromContext(ctx).Warn("silent sso check ignored callback", slogx.Err(err))
		return false, nil
	}

	return true, nil
}

// LoginURL starts an interactive login and returns where to send the
// browser.
func (p *Provider) LoginURL(ctx context.Context) (string, error) {
	oauth, err := p.discover(ctx)
	if err != nil {
		return "", err
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	pkce, err := authsdk.GeneratePKCEChallenge()
	if err != nil {
		return "", err
	}

	now := p.cfg.Now()
	err = p.cfg.Pending.Save(ctx, PendingLogin{
		State:     state,
		Verifier:  pkce.Verifier,
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.PendingTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save pending login: %w", err)
	}

	return oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
	), nil
}

// CompleteLogin finishes the authorization code flow from the URL the
// provider redirected to.
func (p *Provider) CompleteLogin(ctx context.Context, callbackURL string) error {
	oauth, err := p.discover(ctx)
	if err != nil {
		return err
	}

	authz, err := authsdk.ParseAuthorizationCallback(callbackURL)
	if err != nil {
		return err
	}
	if authz.Issuer != "" && authz.Issuer != p.cfg.SDK.Issuer() {
		return fmt.Errorf("%w: issuer %q", ErrStateMismatch, authz.Issuer)
	}

	pending, err := p.cfg.Pending.Consume(ctx, authz.State, p.cfg.Now())
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			return ErrStateMismatch
		}
		return err
	}

	tok, err := oauth.Exchange(p.clientCtx(ctx), authz.Code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExchange, err)
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID != "" {
		idt, err := p.verifier.Verify(p.clientCtx(ctx), rawID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIDToken, err)
		}
		if idt.Nonce != pending.Nonce {
			return fmt.Errorf("%w: nonce mismatch", ErrIDToken)
		}
	}

	p.setToken(tok, rawID)
	return nil
}

func (p *Provider) setToken(tok *oauth2.Token, rawID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.token = tok
	if rawID != "" {
		p.idToken = rawID
	}
	p.gen++
}

// HasToken reports whether an access token is held.
func (p *Provider) HasToken() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token != nil && p.token.AccessToken != ""
}

// Tokens returns the current token state, zero when logged out.
func (p *Provider) Tokens() Tokens {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.token == nil {
		return Tokens{}
	}
	return Tokens{
		AccessToken:  p.token.AccessToken,
		RefreshToken: p.token.RefreshToken,
		IDToken:      p.idToken,
		Expiry:       p.token.Expiry,
	}
}

// IsTokenExpired reports whether the access token is missing or past its
// expiry. The token endpoint's expires_in is preferred; the JWT exp claim
// covers responses that omit it.
func (p *Provider) IsTokenExpired() bool {
	return p.expiresWithin(0)
}

func (p *Provider) expiresWithin(d time.Duration) bool {
	t := p.Tokens()
	if t.AccessToken == "" {
		return true
	}

	now := p.cfg.Now()
	if !t.Expiry.IsZero() {
		return !now.Add(d).Before(t.Expiry)
	}
	return jwtx.ExpiresWithin(t.AccessToken, d, now)
}

// UpdateToken refreshes the token if it expires within minValidity. A
// negative minValidity forces a refresh. It reports whether the token was
// replaced.
func (p *Provider) UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error) {
	oauth, err := p.discover(ctx)
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	cur, gen := p.token, p.gen
	p.mu.RUnlock()

	if cur == nil {
		return false, ErrNotAuthenticated
	}
	if minValidity >= 0 && !p.expiresWithin(minValidity) {
		return false, nil
	}
	if cur.RefreshToken == "" {
		return false, ErrNoRefreshToken
	}

	// Only the refresh token is handed over so the source can't decide the
	// current access token is still good.
	src := oauth.TokenSource(p.clientCtx(ctx), &oauth2.Token{RefreshToken: cur.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRefresh, err)
	}

	rawID, _ := tok.Extra("id_token").(string)

	p.mu.Lock()
	defer p.mu.Unlock()

	// A logout or another login won the race, drop this result.
	if p.gen != gen {
		return false, nil
	}
	p.token = tok
	if rawID != "" {
		p.idToken = rawID
	}
	p.gen++
	return true, nil
}

// Logout drops the local token state and returns the provider's end-session
// URL. It needs no network.
func (p *Provider) Logout(ctx context.Context) string {
	p.mu.Lock()
	idToken := p.idToken
	p.token = nil
	p.idToken = ""
	p.gen++
	p.mu.Unlock()

	p.discoverMu.Lock()
	endpoint := p.endSession
	p.discoverMu.Unlock()

	slogx.FromContext(ctx).Debug("sso logout", "has_id_token", idToken != "")

	return p.cfg.SDK.BuildLogoutURL(endpoint, p.cfg.ClientID, idToken, p.cfg.PostLogoutRedirectURL)
}

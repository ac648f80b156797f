package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/hostapp"
	"github.com/aussiebroadwan/aichef/pkg/identity"
	"github.com/aussiebroadwan/aichef/pkg/sso"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var errProvider = errors.New("provider said no")

func mint(t *testing.T, username string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "u-" + username,
		"preferred_username": username,
		"email":              username + "@x.com",
		"exp":                time.Now().Add(5 * time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

// fakeSSO stands in for *sso.Provider.
type fakeSSO struct {
	t *testing.T

	mu           sync.Mutex
	found        bool
	initErr      error
	initCalls    int
	loginCalls   int
	logoutCalls  int
	updateCalls  int
	lastMinValid time.Duration
	tokens       sso.Tokens
	expired      bool
	updateErr    error
	completeErr  error
	nextUser     string
	block        chan struct{}
	entered      chan struct{}
}

func newFakeSSO(t *testing.T) *fakeSSO {
	return &fakeSSO{t: t, nextUser: "ann2"}
}

func (f *fakeSSO) signIn(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.found = true
	f.tokens = sso.Tokens{AccessToken: mint(f.t, username), RefreshToken: "rt-" + username, IDToken: "id"}
}

func (f *fakeSSO) Init(_ context.Context, _ sso.InitOptions) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.found, f.initErr
}

func (f *fakeSSO) LoginURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return "https://idp/auth?state=s", nil
}

func (f *fakeSSO) CompleteLogin(_ context.Context, _ string) error {
	f.mu.Lock()
	err := f.completeErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.signIn("ann")
	return nil
}

func (f *fakeSSO) Logout(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	f.tokens = sso.Tokens{}
	return "https://idp/logout?client_id=ai-chef"
}

func (f *fakeSSO) Tokens() sso.Tokens {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens
}

func (f *fakeSSO) IsTokenExpired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func (f *fakeSSO) UpdateToken(_ context.Context, minValidity time.Duration) (bool, error) {
	f.mu.Lock()
	f.updateCalls++
	f.lastMinValid = minValidity
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return false, f.updateErr
	}
	if minValidity >= 0 && !f.expired {
		return false, nil
	}
	f.expired = false
	f.tokens.AccessToken = mint(f.t, f.nextUser)
	return true, nil
}

func (f *fakeSSO) counts() (init, login, update, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.loginCalls, f.updateCalls, f.logoutCalls
}

// fakeHost stands in for *hostapp.Adapter.
type fakeHost struct {
	detected    bool
	user        *identity.HostUser
	exchangeErr error
	refresh     string

	mu          sync.Mutex
	renewErr    error
	renewCalls  int
	revoked     []string
	renewSerial int
}

func (f *fakeHost) Detect() bool { return f.detected }

func (f *fakeHost) ExtractAssertion() (*hostapp.Assertion, error) {
	if f.user == nil {
		return nil, nil
	}
	return &hostapp.Assertion{User: *f.user, AuthDate: time.Unix(1700000000, 0), Hash: "h"}, nil
}

func (f *fakeHost) Exchange(context.Context, *hostapp.Assertion) (*authsdk.TokenResponse, error) {
	if f.exchangeErr != nil {
		return nil, fmt.Errorf("%w: %w", hostapp.ErrExchange, f.exchangeErr)
	}
	return &authsdk.TokenResponse{AccessToken: "host-at-0", RefreshToken: f.refresh}, nil
}

func (f *fakeHost) Renew(_ context.Context, refreshToken string) (*authsdk.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewCalls++

	if refreshToken == "" {
		return nil, hostapp.ErrNoRefreshToken
	}
	if f.renewErr != nil {
		return nil, f.renewErr
	}
	f.renewSerial++
	return &authsdk.TokenResponse{AccessToken: fmt.Sprintf("host-at-%d", f.renewSerial)}, nil
}

func (f *fakeHost) Revoke(_ context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, refreshToken)
	return nil
}

func (f *fakeHost) renewals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewCalls
}

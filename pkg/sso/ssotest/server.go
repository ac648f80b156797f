// Package ssotest runs an in-process stand-in for a Keycloak realm: OpenID
// discovery, JWKS, the token endpoint (authorization_code with PKCE,
// refresh_token and password grants) and revocation.
package ssotest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Realm    = "AIChef"
	ClientID = "ai-chef"
	keyID    = "ssotest"
)

type authCode struct {
	challenge   string
	nonce       string
	redirectURI string
}

// Server is a fake realm. The zero configuration issues 5 minute access
// tokens and rotates refresh tokens.
type Server struct {
	*httptest.Server

	key *rsa.PrivateKey

	mu            sync.Mutex
	seq           int
	codes         map[string]authCode
	refresh       map[string]string
	user          jwt.MapClaims
	tokenTTL      time.Duration
	keepRefresh   bool
	failRefresh   bool
	failPassword  bool
	refreshCalls  int
	passwordCalls int
	revoked       []string
	lastForm      url.Values
}

// NewServer starts a realm that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("ssotest: generate key: %v", err)
	}

	s := &Server{
		key:      key,
		codes:    make(map[string]authCode),
		refresh:  make(map[string]string),
		tokenTTL: 5 * time.Minute,
		user: jwt.MapClaims{
			"preferred_username": "ann",
			"email":              "a@x.com",
			"given_name":         "Ann",
			"family_name":        "Lee",
			"realm_access":       map[string]any{"roles": []string{"cook"}},
		},
	}

	prefix := "/realms/" + Realm
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix+"/.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("GET "+prefix+"/protocol/openid-connect/certs", s.handleCerts)
	mux.HandleFunc("POST "+prefix+"/protocol/openid-connect/token", s.handleToken)
	mux.HandleFunc("POST "+prefix+"/protocol/openid-connect/revoke", s.handleRevoke)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Issuer is the realm issuer URL.
func (s *Server) Issuer() string { return s.URL + "/realms/" + Realm }

// SetTokenTTL changes the expires_in of tokens issued from now on.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// SetKeepRefresh stops refresh token rotation: refresh responses omit
// refresh_token, like realms with rotation disabled.
func (s *Server) SetKeepRefresh(keep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepRefresh = keep
}

// SetFailRefresh makes every refresh_token grant fail with invalid_grant.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetFailPassword makes every password grant fail with invalid_grant.
func (s *Server) SetFailPassword(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPassword = fail
}

// SetUserClaims replaces the profile claims put in issued tokens.
func (s *Server) SetUserClaims(c jwt.MapClaims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = c
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) PasswordCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwordCalls
}

// Revoked lists the tokens passed to the revocation endpoint.
func (s *Server) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revoked...)
}

// LastForm is the most recent token endpoint form.
func (s *Server) LastForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm
}

// Mint signs claims with the realm key.
func (s *Server) Mint(claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID

	signed, err := tok.SignedString(s.key)
	if err != nil {
		panic(err)
	}
	return signed
}

// Authorize plays the user logging in at the authorization endpoint and
// returns the callback URL the browser would be sent to.
func (s *Server) Authorize(loginURL string) (string, error) {
	u, err := url.Parse(loginURL)
	if err != nil {
		return "", err
	}
	q := u.Query()

	switch {
	case q.Get("client_id") != ClientID:
		return "", fmt.Errorf("ssotest: unexpected client_id %q", q.Get("client_id"))
	case q.Get("code_challenge_method") != "S256":
		return "", fmt.Errorf("ssotest: PKCE S256 required")
	case q.Get("state") == "":
		return "", fmt.Errorf("ssotest: missing state")
	}

	s.mu.Lock()
	s.seq++
	code := fmt.Sprintf("code-%d", s.seq)
	s.codes[code] = authCode{
		challenge:   q.Get("code_challenge"),
		nonce:       q.Get("nonce"),
		redirectURI: q.Get("redirect_uri"),
	}
	s.mu.Unlock()

	cb, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		return "", err
	}
	cq := cb.Query()
	cq.Set("code", code)
	cq.Set("state", q.Get("state"))
	cq.Set("session_state", "ssotest")
	cb.RawQuery = cq.Encode()
	return cb.String(), nil
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	base := s.Issuer() + "/protocol/openid-connect"
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.Issuer(),
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"userinfo_endpoint":                     base + "/userinfo",
		"end_session_endpoint":                  base + "/logout",
		"revocation_endpoint":                   base + "/revoke",
		"jwks_uri":                              base + "/certs",
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
	})
}

func (s *Server) handleCerts(w http.ResponseWriter, r *http.Request) {
	enc := base64.RawURLEncoding
	pub := s.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": keyID,
			"alg": "RS256",
			"use": "sig",
			"n":   enc.EncodeToString(pub.N.Bytes()),
			"e":   enc.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	s.mu.Lock()
	s.revoked = append(s.revoked, r.PostForm.Get("token"))
	delete(s.refresh, r.PostForm.Get("token"))
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	form := r.PostForm

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastForm = form

	if form.Get("client_id") != ClientID {
		oauthError(w, http.StatusUnauthorized, "unauthorized_client", "unknown client")
		return
	}

	switch form.Get("grant_type") {
	case "authorization_code":
		ac, ok := s.codes[form.Get("code")]
		delete(s.codes, form.Get("code"))
		if !ok {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "Code not valid")
			return
		}
		sum := sha256.Sum256([]byte(form.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != ac.challenge {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
			return
		}
		if form.Get("redirect_uri") != ac.redirectURI {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "Incorrect redirect_uri")
			return
		}
		s.issue(w, "sso-user", ac.nonce, true)

	case "refresh_token":
		s.refreshCalls++
		sub, ok := s.refresh[form.Get("refresh_token")]
		if s.failRefresh || !ok {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "Token is not active")
			return
		}
		if !s.keepRefresh {
			delete(s.refresh, form.Get("refresh_token"))
		}
		s.issue(w, sub, "", !s.keepRefresh)

	case "password":
		s.passwordCalls++
		if s.failPassword || form.Get("hash") == "" {
			oauthError(w, http.StatusUnauthorized, "invalid_grant", "Invalid user credentials")
			return
		}
		s.issue(w, "host-"+form.Get("id"), "", true)

	default:
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

// issue writes a token response. Caller holds s.mu.
func (s *Server) issue(w http.ResponseWriter, sub, nonce string, withRefresh bool) {
	s.seq++
	now := time.Now()

	claims := jwt.MapClaims{
		"iss": s.Issuer(),
		"sub": sub,
		"aud": "account",
		"azp": ClientID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
		"jti": fmt.Sprintf("jti-%d", s.seq),
	}
	for k, v := range s.user {
		claims[k] = v
	}

	idClaims := jwt.MapClaims{
		"iss": s.Issuer(),
		"sub": sub,
		"aud": ClientID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}

	resp := map[string]any{
		"access_token": s.Mint(claims),
		"id_token":     s.Mint(idClaims),
		"token_type":   "Bearer",
		"expires_in":   int(s.tokenTTL.Seconds()),
		"scope":        "openid profile email",
	}

	if withRefresh {
		rt := fmt.Sprintf("rt-%d", s.seq)
		s.refresh[rt] = sub
		resp["refresh_token"] = rt
		resp["refresh_expires_in"] = 1800
	}

	writeJSON(w, http.StatusOK, resp)
}

func oauthError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": desc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

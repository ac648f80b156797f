// Package credential holds the bearer credentials for the current session.
//
// The session controller is the only writer. Everything else (the request
// layer, HTTP handlers) receives a Reader.
package credential

import "sync"

// Pair is an access token and the refresh token that renews it.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no access token is held.
func (p Pair) Empty() bool { return p.AccessToken == "" }

// Reader is the read-only view handed to consumers of the session.
type Reader interface {
	AccessToken() string
	Pair() Pair
}

// Store is a process-lifetime credential holder safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	pair Pair
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// AccessToken returns the current access token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken
}

// Pair returns a copy of the held credentials.
func (s *Store) Pair() Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// Set replaces the held credentials. Identity providers don't always rotate
// refresh tokens, so an empty RefreshToken keeps the one already held.
func (s *Store) Set(p Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.RefreshToken == "" {
		p.RefreshToken = s.pair.RefreshToken
	}
	s.pair = p
}

// Replace sets both tokens exactly, including an empty refresh token.
func (s *Store) Replace(p Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = p
}

// Clear drops both tokens.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
}

package sso

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPendingNotFound is returned when a callback's state matches no live
// pending login (unknown, already used, or expired).
var ErrPendingNotFound = errors.New("sso: pending login not found")

// PendingLogin is what must survive the redirect round-trip to the provider
// and back.
type PendingLogin struct {
	State     string
	Verifier  string
	Nonce     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PendingStore persists pending logins. Consume is single use: a state can
// complete at most one login.
type PendingStore interface {
	Save(ctx context.Context, p PendingLogin) error
	Consume(ctx context.Context, state string, now time.Time) (*PendingLogin, error)
}

// MemoryPendingStore keeps pending logins in process memory. Good enough
// when the callback is handled by the same process that started the login.
type MemoryPendingStore struct {
	mu      sync.Mutex
	pending map[string]PendingLogin
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[string]PendingLogin)}
}

func (m *MemoryPendingStore) Save(_ context.Context, p PendingLogin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[p.State] = p
	return nil
}

func (m *MemoryPendingStore) Consume(_ context.Context, state string, now time.Time) (*PendingLogin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[state]
	if !ok {
		return nil, ErrPendingNotFound
	}
	delete(m.pending, state)

	if !now.Before(p.ExpiresAt) {
		return nil, ErrPendingNotFound
	}
	return &p, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/aichef/internal/chef/domain"
	"github.com/aussiebroadwan/aichef/pkg/cryptox"
	"github.com/aussiebroadwan/aichef/pkg/idx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
)

// PendingStoreAdapter lets the sso package keep pending logins in the
// database without knowing about it. Verifiers are sealed with the state as
// associated data, so a row moved to another state no longer opens.
type PendingStoreAdapter struct {
	store  Store
	sealer *cryptox.Sealer
}

func NewPendingStoreAdapter(store Store, sealer *cryptox.Sealer) *PendingStoreAdapter {
	return &PendingStoreAdapter{store: store, sealer: sealer}
}

func (a *PendingStoreAdapter) Save(ctx context.Context, p sso.PendingLogin) error {
	sealed, err := a.sealer.Seal([]byte(p.Verifier), []byte(p.State))
	if err != nil {
		return fmt.Errorf("seal verifier: %w", err)
	}

	return a.store.PendingLogins().CreatePendingLogin(ctx, domain.PendingLogin{
		ID:             idx.NewAt(p.CreatedAt).String(),
		State:          p.State,
		VerifierSealed: sealed,
		Nonce:          p.Nonce,
		CreatedAt:      p.CreatedAt,
		ExpiresAt:      p.ExpiresAt,
	})
}

func (a *PendingStoreAdapter) Consume(ctx context.Context, state string, now time.Time) (*sso.PendingLogin, error) {
	row, err := a.store.PendingLogins().ConsumePendingLogin(ctx, state)
	if errors.Is(err, ErrNotFound) {
		return nil, sso.ErrPendingNotFound
	}
	if err != nil {
		return nil, err
	}

	if row.IsExpired(now) {
		return nil, sso.ErrPendingNotFound
	}

	verifier, err := a.sealer.Open(row.VerifierSealed, []byte(row.State))
	if err != nil {
		return nil, fmt.Errorf("open verifier: %w", err)
	}

	return &sso.PendingLogin{
		State:     row.State,
		Verifier:  string(verifier),
		Nonce:     row.Nonce,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/aichef/internal/chef/domain"
	"github.com/aussiebroadwan/aichef/internal/chef/store/drivers/sqlite/gen"
)

type pendingLoginsRepo struct {
	q *gen.Queries
}

func (r *pendingLoginsRepo) CreatePendingLogin(ctx context.Context, p domain.PendingLogin) error {
	err := r.q.CreatePendingLogin(ctx, gen.CreatePendingLoginParams{
		ID:             p.ID,
		State:          p.State,
		VerifierSealed: p.VerifierSealed,
		Nonce:          p.Nonce,
		CreatedAt:      toMillis(p.CreatedAt),
		ExpiresAt:      toMillis(p.ExpiresAt),
	})
	return mapConstraint(err)
}

func (r *pendingLoginsRepo) ConsumePendingLogin(ctx context.Context, state string) (domain.PendingLogin, error) {
	row, err := r.q.ConsumePendingLogin(ctx, state)
	if err != nil {
		return domain.PendingLogin{}, mapNotFound(err)
	}
	return mapPendingLogin(row), nil
}

func (r *pendingLoginsRepo) DeleteExpiredPendingLogins(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredPendingLogins(ctx, toMillis(now))
}

func (r *pendingLoginsRepo) CountPendingLogins(ctx context.Context) (int64, error) {
	return r.q.CountPendingLogins(ctx)
}

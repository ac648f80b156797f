package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/aichef/internal/chef/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface, implemented by the drivers.
type Store interface {
	PendingLogins() PendingLogins

	ApplyMigrations() error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type PendingLogins interface {
	// CreatePendingLogin fails with ErrAlreadyExists on a state collision.
	CreatePendingLogin(ctx context.Context, p domain.PendingLogin) error

	// ConsumePendingLogin deletes the login for state and returns it, expired
	// or not. A second call for the same state returns ErrNotFound.
	ConsumePendingLogin(ctx context.Context, state string) (domain.PendingLogin, error)

	// DeleteExpiredPendingLogins removes logins that expired before now and
	// returns how many went.
	DeleteExpiredPendingLogins(ctx context.Context, now time.Time) (int64, error)

	CountPendingLogins(ctx context.Context) (int64, error)
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/aichef/internal/chef/store"
)

// HousekeepingService periodically deletes pending logins whose browser
// never came back, so abandoned login attempts don't pile up.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to 15 minutes.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass and returns how many records went.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	deleted, err := s.Store.PendingLogins().DeleteExpiredPendingLogins(ctx, s.Now())
	if err != nil {
		s.Logger.Error("failed to delete expired pending logins", "error", err)
		return 0
	}

	if deleted > 0 {
		s.Logger.Info("housekeeping cleanup completed", "expired_pending_logins", deleted)
	} else {
		s.Logger.Debug("housekeeping cleanup completed, nothing expired")
	}
	return deleted
}

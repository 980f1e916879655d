package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/store"
)

// HousekeepingService periodically force-fails long-expired
// authorisations that no request ever touched again. It is hygiene
// only: deadlines are enforced on read regardless, and records are
// moved to failed, never deleted, to keep the audit trail intact.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Grace delays the sweep past the deadline so a record observed as
	// expired on the hot path is always failed there first.
	Grace time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. A non-positive interval
// defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, grace time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		Grace:    grace,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut
// it down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down and blocks until any in-progress sweep
// finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.Grace)

	n, err := s.Store.Authorisations().FailExpired(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to sweep expired authorisations", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("swept expired authorisations", "failed", n)
	}
}

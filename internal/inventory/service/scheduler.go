package service

import (
	"context"
	"time"

	"github.com/kioskly/kiosk-backend/pkg/logger"
)

// MaintenanceScheduler runs the periodic background cycle: sweep expired
// batches, rescan alerts, audit aggregate integrity. Sweeping first keeps
// the scan from alerting on stock that is about to be written off.
type MaintenanceScheduler struct {
	sweeper  *ExpirySweeper
	scanner  *AlertScanner
	auditor  *IntegrityAuditor
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewMaintenanceScheduler creates a new maintenance scheduler
func NewMaintenanceScheduler(
	sweeper *ExpirySweeper,
	scanner *AlertScanner,
	auditor *IntegrityAuditor,
	interval time.Duration,
	log *logger.Logger,
) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		sweeper:  sweeper,
		scanner:  scanner,
		auditor:  auditor,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine. An initial cycle
// runs immediately, then one per interval until the context is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("maintenance scheduler started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("maintenance scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *MaintenanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// runCycle runs one sweep-scan-audit pass. Each step logs its own failure
// and the cycle continues; a broken scan must not block the audit.
func (s *MaintenanceScheduler) runCycle(ctx context.Context) {
	start := time.Now()

	if _, err := s.sweeper.SweepExpired(ctx); err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
	}

	if err := s.scanner.Scan(ctx); err != nil {
		s.logger.Error().Err(err).Msg("alert scan failed")
	}

	if _, err := s.auditor.Audit(ctx); err != nil {
		s.logger.Error().Err(err).Msg("integrity audit failed")
	}

	s.logger.Info().Dur("duration", time.Since(start)).Msg("maintenance cycle completed")
}

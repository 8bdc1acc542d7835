package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookfit/credits/internal/usecase"
)

// MaintenanceService defines the reconciliation operations the worker drives.
type MaintenanceService interface {
	SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
	ReconcileUsers(ctx context.Context, input usecase.ReconcileBatchInput) (*usecase.ReconcileSummary, error)
}

// Maintenance runs background ledger upkeep: failing stale pending
// transactions so their idempotency keys become retryable, and periodically
// reconciling cached balances against the ledger.
type Maintenance struct {
	service MaintenanceService
	logger  zerolog.Logger

	sweepInterval  time.Duration
	sweepOlderThan time.Duration
	sweepLimit     int

	reconcileInterval time.Duration
	batchSize         int
}

// Config for Maintenance.
type Config struct {
	Service MaintenanceService
	Logger  zerolog.Logger

	SweepInterval  time.Duration // how often to look for stale pending transactions
	SweepOlderThan time.Duration // pending age before a transaction counts as stale
	SweepLimit     int

	ReconcileInterval time.Duration // how often to reconcile all cached balances
	BatchSize         int
}

// NewMaintenance creates a new Maintenance worker.
func NewMaintenance(cfg Config) *Maintenance {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.SweepOlderThan == 0 {
		cfg.SweepOlderThan = 15 * time.Minute
	}
	if cfg.SweepLimit == 0 {
		cfg.SweepLimit = 100
	}
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}

	return &Maintenance{
		service:           cfg.Service,
		logger:            cfg.Logger,
		sweepInterval:     cfg.SweepInterval,
		sweepOlderThan:    cfg.SweepOlderThan,
		sweepLimit:        cfg.SweepLimit,
		reconcileInterval: cfg.ReconcileInterval,
		batchSize:         cfg.BatchSize,
	}
}

// Start runs the worker until the context is cancelled.
func (m *Maintenance) Start(ctx context.Context) error {
	m.logger.Info().
		Dur("sweep_interval", m.sweepInterval).
		Dur("reconcile_interval", m.reconcileInterval).
		Msg("maintenance worker started")

	sweepTicker := time.NewTicker(m.sweepInterval)
	defer sweepTicker.Stop()

	reconcileTicker := time.NewTicker(m.reconcileInterval)
	defer reconcileTicker.Stop()

	// Sweep immediately on start to clear crash artifacts.
	m.runSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("maintenance worker shutting down")
			return ctx.Err()
		case <-sweepTicker.C:
			m.runSweep(ctx)
		case <-reconcileTicker.C:
			m.runReconcile(ctx)
		}
	}
}

func (m *Maintenance) runSweep(ctx context.Context) {
	swept, err := m.service.SweepStalePending(ctx, m.sweepOlderThan, m.sweepLimit)
	if err != nil {
		m.logger.Error().Err(err).Msg("stale pending sweep failed")
		return
	}

	if swept > 0 {
		m.logger.Info().Int("swept", swept).Msg("stale pending transactions failed")
	}
}

func (m *Maintenance) runReconcile(ctx context.Context) {
	summary, err := m.service.ReconcileUsers(ctx, usecase.ReconcileBatchInput{
		BatchSize: m.batchSize,
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("scheduled reconciliation failed")
		return
	}

	event := m.logger.Info()
	if summary.Inconsistent > 0 || len(summary.Errors) > 0 {
		event = m.logger.Warn()
	}

	event.
		Int("processed", summary.Processed).
		Int("updated", summary.Updated).
		Int("inconsistent", summary.Inconsistent).
		Int("errors", len(summary.Errors)).
		Dur("duration", summary.Duration).
		Msg("scheduled reconciliation completed")
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/infrastructure/metrics"
)

// ReconciliationUseCase re-derives true balances from the ledger and heals
// cached-balance drift. It writes the cache, never the ledger.
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	entryRepo   EntryRepository
	txRepo      TransactionRepository
	cache       Cache
	cooldown    time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewReconciliationUseCase creates a new ReconciliationUseCase. A
// non-positive cooldown falls back to the default.
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	txRepo TransactionRepository,
	cache Cache,
	cooldown time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if cooldown <= 0 {
		cooldown = DefaultReconcileCooldown
	}

	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		txRepo:      txRepo,
		cache:       cache,
		cooldown:    cooldown,
		metrics:     m,
		logger:      logger,
	}
}

// ReconcileOptions controls a single reconciliation run.
type ReconcileOptions struct {
	// DryRun reports drift without touching the cache.
	DryRun bool
	// ForceUpdate bypasses the cooldown.
	ForceUpdate bool
	// IncludeAnalysis adds named inconsistencies to the result.
	IncludeAnalysis bool
}

// ReconcileResult is the outcome of reconciling one account.
type ReconcileResult struct {
	UserID          string
	Computed        domain.Balance
	Cached          domain.Balance
	AvailableDelta  int64
	LifetimeDelta   int64
	WasUpdated      bool
	Inconsistencies []string
	CheckedAt       time.Time
}

// ReconcileUser recomputes a user's balance from the ledger, compares it to
// the cached balance, and overwrites the cache when drift is found and the
// update policy allows it. Running it twice with no intervening writes
// reports WasUpdated=false the second time.
func (uc *ReconciliationUseCase) ReconcileUser(ctx context.Context, userID string, opts ReconcileOptions) (*ReconcileResult, error) {
	ref := domain.UserRef(userID)

	account, err := uc.accountRepo.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.GetByAccount(ctx, ref)
	if err != nil {
		return nil, err
	}

	zeroAmounts, err := validateLedgerIntegrity(entries)
	if err != nil {
		// Data corruption is surfaced loudly, never silently patched.
		return nil, err
	}

	now := time.Now().UTC()
	computed := domain.ComputeBalance(entries, now)
	cached := account.CachedBalance()

	result := &ReconcileResult{
		UserID:         userID,
		Computed:       computed,
		Cached:         cached,
		AvailableDelta: computed.AvailableCredits - cached.AvailableCredits,
		LifetimeDelta:  computed.LifetimeCredits - cached.LifetimeCredits,
		CheckedAt:      now,
	}

	drifted := !computed.Equal(cached)

	if opts.IncludeAnalysis {
		result.Inconsistencies = analyze(computed, cached, zeroAmounts)
	}

	if drifted && uc.metrics != nil {
		uc.metrics.ReconciliationDrift.Inc()
	}

	if drifted && !opts.DryRun && (opts.ForceUpdate || now.Sub(account.CreditsLastUpdated) > uc.cooldown) {
		if err := uc.accountRepo.SetCachedBalance(ctx, ref, computed, now); err != nil {
			return nil, err
		}

		if uc.cache != nil {
			if err := uc.cache.Delete(ctx, balanceCacheKey(ref)); err != nil {
				uc.logger.Warn().Err(err).Str("user_id", userID).Msg("balance cache invalidation failed")
			}
		}

		result.WasUpdated = true

		if uc.metrics != nil {
			uc.metrics.ReconciliationHealed.Inc()
		}

		uc.logger.Info().
			Str("user_id", userID).
			Int64("available_delta", result.AvailableDelta).
			Int64("lifetime_delta", result.LifetimeDelta).
			Msg("cached balance healed")
	}

	return result, nil
}

// ReconcileBatchInput selects the accounts for a batch run. Leave UserIDs
// empty to reconcile all users.
type ReconcileBatchInput struct {
	UserIDs   []string
	BatchSize int
	Options   ReconcileOptions
}

// UserError records one account's failure inside a batch run.
type UserError struct {
	UserID string
	Err    error
}

// ReconcileSummary aggregates a batch run.
type ReconcileSummary struct {
	Processed    int
	Updated      int
	Inconsistent int
	Errors       []UserError
	Duration     time.Duration
}

// ReconcileUsers reconciles many users in batches. One user's failure never
// blocks the rest: it is captured into the error list and processing
// continues.
func (uc *ReconciliationUseCase) ReconcileUsers(ctx context.Context, input ReconcileBatchInput) (*ReconcileSummary, error) {
	if input.BatchSize <= 0 {
		input.BatchSize = DefaultReconcileBatchSize
	}

	started := time.Now()
	summary := &ReconcileSummary{}

	process := func(userID string) {
		result, err := uc.ReconcileUser(ctx, userID, input.Options)

		summary.Processed++

		if err != nil {
			summary.Errors = append(summary.Errors, UserError{UserID: userID, Err: err})
			uc.logger.Error().Err(err).Str("user_id", userID).Msg("reconciliation failed")
			return
		}

		if !result.Computed.Equal(result.Cached) {
			summary.Inconsistent++
		}

		if result.WasUpdated {
			summary.Updated++
		}
	}

	if len(input.UserIDs) > 0 {
		for _, userID := range input.UserIDs {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			process(userID)
		}
	} else {
		for offset := 0; ; offset += input.BatchSize {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			userIDs, err := uc.accountRepo.ListUserIDs(ctx, input.BatchSize, offset)
			if err != nil {
				return summary, err
			}

			if len(userIDs) == 0 {
				break
			}

			for _, userID := range userIDs {
				process(userID)
			}

			if len(userIDs) < input.BatchSize {
				break
			}
		}
	}

	summary.Duration = time.Since(started)

	if uc.metrics != nil {
		uc.metrics.ReconciliationRuns.Inc()
	}

	return summary, nil
}

// SweepStalePending fails transactions stuck in pending longer than the
// given age. Such headers are crash artifacts: their key blocks retries
// until resolved, and failing them re-opens the idempotent retry path.
func (uc *ReconciliationUseCase) SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		olderThan = StalePendingTimeout
	}

	if limit <= 0 {
		limit = DefaultReconcileBatchSize
	}

	now := time.Now().UTC()

	stale, err := uc.txRepo.ListStalePending(ctx, now.Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, tx := range stale {
		if err := uc.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusFailed, now); err != nil {
			uc.logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to sweep stale pending transaction")
			continue
		}

		uc.logger.Warn().
			Str("transaction_id", tx.ID).
			Str("idempotency_key", tx.IdempotencyKey).
			Time("created_at", tx.CreatedAt).
			Msg("stale pending transaction marked failed")

		swept++
	}

	if uc.metrics != nil && swept > 0 {
		uc.metrics.StalePendingSwept.Add(float64(swept))
	}

	return swept, nil
}

// validateLedgerIntegrity checks the structural invariants of loaded
// entries. A contradictory account reference is corruption; zero amounts are
// reported back as no-op pollution for analysis.
func validateLedgerIntegrity(entries []*domain.Entry) (zeroAmounts int, err error) {
	for _, e := range entries {
		if refErr := e.Account.Validate(); refErr != nil {
			return 0, fmt.Errorf("%w: entry %s: %v", domain.ErrLedgerCorrupt, e.ID, refErr)
		}

		if !e.Type.IsValid() {
			return 0, fmt.Errorf("%w: entry %s: unknown type %q", domain.ErrLedgerCorrupt, e.ID, e.Type)
		}

		if e.Amount == 0 {
			zeroAmounts++
		}
	}

	return zeroAmounts, nil
}

func analyze(computed, cached domain.Balance, zeroAmounts int) []string {
	var notes []string

	if d := computed.AvailableCredits - cached.AvailableCredits; d != 0 {
		notes = append(notes, fmt.Sprintf("cached available differs from computed by %+d", -d))
	}

	if d := computed.LifetimeCredits - cached.LifetimeCredits; d != 0 {
		notes = append(notes, fmt.Sprintf("cached lifetime differs from computed by %+d", -d))
	}

	if d := computed.HeldCredits - cached.HeldCredits; d != 0 {
		notes = append(notes, fmt.Sprintf("cached held differs from computed by %+d", -d))
	}

	if zeroAmounts > 0 {
		notes = append(notes, fmt.Sprintf("%d zero-amount entries present", zeroAmounts))
	}

	return notes
}

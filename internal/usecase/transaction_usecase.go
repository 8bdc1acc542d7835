package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/infrastructure/metrics"
)

// ErrDuplicateIdempotencyKey is returned by TransactionRepository.CreateHeader
// when the key is already taken. The engine resolves it by re-reading the
// winning header.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")

// TransactionUseCase is the transaction engine, the single write path for
// credit movement. It validates a balanced entry set, persists a
// header plus all entries, and enforces exactly-once semantics through the
// caller-supplied idempotency key.
type TransactionUseCase struct {
	txManager    TransactionManager
	accountRepo  AccountRepository
	txRepo       TransactionRepository
	entryRepo    EntryRepository
	cache        Cache
	idGen        IDGenerator
	retrier      Retrier
	expiryPolicy domain.ExpiryPolicy
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txRepo TransactionRepository,
	entryRepo EntryRepository,
	cache Cache,
	idGen IDGenerator,
	retrier Retrier,
	expiryPolicy domain.ExpiryPolicy,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:    txManager,
		accountRepo:  accountRepo,
		txRepo:       txRepo,
		entryRepo:    entryRepo,
		cache:        cache,
		idGen:        idGen,
		retrier:      retrier,
		expiryPolicy: expiryPolicy,
		metrics:      m,
		logger:       logger,
	}
}

// EntryInput describes one entry of a proposed transaction.
type EntryInput struct {
	Account         domain.AccountRef
	Amount          int64
	Type            domain.EntryType
	EffectiveAt     *time.Time
	BookingID       string
	ClassInstanceID string
}

// CreateTransactionInput is the engine's contract.
type CreateTransactionInput struct {
	IdempotencyKey string
	Description    string
	Actor          string
	Action         string
	Entries        []EntryInput
}

// CreateTransaction validates and persists a balanced transaction.
//
// Re-submission with a completed key returns the existing transaction
// without writing anything. A failed key is retried under the same key:
// its prior entries are soft-deleted and rewritten. A pending key means a
// concurrent call or a crash mid-write; the engine fails fast with
// ErrTransactionInFlight rather than risk a double apply.
func (uc *TransactionUseCase) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*domain.Transaction, error) {
	if input.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	entries := uc.buildEntries(input.Entries, now)
	if err := domain.ValidateEntrySet(entries); err != nil {
		return nil, err
	}

	refs := domain.CollectAccountRefs(entries)

	missing, err := uc.accountRepo.MissingRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, missing[0])
	}

	header, replay, err := uc.claimKey(ctx, input, now)
	if err != nil {
		return nil, err
	}

	if replay {
		if uc.metrics != nil {
			uc.metrics.TransactionsReplayed.Inc()
		}
		return header, nil
	}

	if err := uc.writeEntries(ctx, header, entries, now); err != nil {
		uc.markFailed(ctx, header.ID)

		if uc.metrics != nil {
			uc.metrics.TransactionsFailed.Inc()
		}

		return nil, err
	}

	header.Status = domain.TransactionStatusCompleted
	header.UpdatedAt = now

	if uc.metrics != nil {
		uc.metrics.TransactionsCreated.Inc()
		uc.metrics.EntriesWritten.Add(float64(len(entries)))
		uc.metrics.TransactionDuration.Observe(time.Since(now).Seconds())
	}

	uc.refreshCaches(ctx, entries, now)

	return header, nil
}

// GetTransaction retrieves a transaction by ID.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

// FindByIdempotencyKey returns the transaction recorded under the key, or
// domain.ErrTransactionNotFound. Callers use it to detect a spend that
// already committed before re-running pre-write checks.
func (uc *TransactionUseCase) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return uc.txRepo.GetByIdempotencyKey(ctx, key)
}

// GetTransactionEntries retrieves the entries of a transaction.
func (uc *TransactionUseCase) GetTransactionEntries(ctx context.Context, id string) ([]*domain.Entry, error) {
	return uc.entryRepo.GetByTransaction(ctx, id)
}

// claimKey resolves the idempotency key to a header this call owns.
// Returns (header, replay) where replay means the key's transaction already
// completed and nothing must be written.
func (uc *TransactionUseCase) claimKey(ctx context.Context, input CreateTransactionInput, now time.Time) (*domain.Transaction, bool, error) {
	existing, err := uc.txRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, false, err
	}

	if existing != nil {
		if existing.Replayable() {
			return existing, true, nil
		}

		switch existing.Status {
		case domain.TransactionStatusPending:
			return nil, false, domain.ErrTransactionInFlight
		case domain.TransactionStatusFailed:
			// Retry under the same key: reclaim the header.
			if err := uc.txRepo.UpdateStatus(ctx, existing.ID, domain.TransactionStatusPending, now); err != nil {
				return nil, false, err
			}
			existing.Status = domain.TransactionStatusPending
			return existing, false, nil
		}
	}

	header := &domain.Transaction{
		ID:             uc.idGen.Generate(),
		IdempotencyKey: input.IdempotencyKey,
		Status:         domain.TransactionStatusPending,
		Description:    input.Description,
		Actor:          input.Actor,
		Action:         input.Action,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = uc.txRepo.CreateHeader(ctx, header)
	if err == nil {
		return header, false, nil
	}

	if !errors.Is(err, ErrDuplicateIdempotencyKey) {
		return nil, false, err
	}

	// Lost the race to a concurrent call with the same key. The winner's
	// outcome is ours too.
	winner, err := uc.txRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}

	if winner.Replayable() {
		return winner, true, nil
	}

	return nil, false, domain.ErrTransactionInFlight
}

// writeEntries persists the entry set and flips the header to completed,
// atomically. Prior entries under the same transaction (a failed attempt
// being retried) are soft-deleted first so balances never double-count.
func (uc *TransactionUseCase) writeEntries(ctx context.Context, header *domain.Transaction, entries []*domain.Entry, now time.Time) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	for _, e := range entries {
		e.ID = uc.idGen.Generate()
		e.TransactionID = header.ID
		e.ExpiresAt = uc.expiryPolicy.ExpiryFor(e.Type, e.Amount, now)
		e.CreatedAt = now
	}

	operation := func() error {
		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := uc.entryRepo.SoftDeleteByTransaction(txCtx, tx, header.ID, now); err != nil {
			return err
		}

		if err := uc.entryRepo.CreateBatch(txCtx, tx, entries); err != nil {
			return err
		}

		if err := uc.txRepo.UpdateStatusTx(txCtx, tx, header.ID, domain.TransactionStatusCompleted, now); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	}

	if uc.retrier != nil {
		return uc.retrier.Retry(txCtx, operation)
	}

	return operation()
}

// markFailed records the failure on the header so the key can be retried.
// Best effort: if this write fails too, the header stays pending and the
// stale-pending sweep picks it up.
func (uc *TransactionUseCase) markFailed(ctx context.Context, id string) {
	if err := uc.txRepo.UpdateStatus(ctx, id, domain.TransactionStatusFailed, time.Now().UTC()); err != nil {
		uc.logger.Error().Err(err).Str("transaction_id", id).Msg("failed to mark transaction failed")
	}
}

// refreshCaches applies the transaction's per-account deltas to the cached
// balances and drops the redis-front cache. Failures here are logged and
// left to reconciliation: the cache is never the record.
func (uc *TransactionUseCase) refreshCaches(ctx context.Context, entries []*domain.Entry, now time.Time) {
	deltas := make(map[domain.AccountRef]BalanceDelta)

	for _, e := range entries {
		d := deltas[e.Account]

		if e.Type == domain.EntryTypeHold {
			d.Held += e.Amount
		} else {
			d.Available += e.Amount
		}

		if e.Amount > 0 {
			d.Lifetime += e.Amount
		}

		deltas[e.Account] = d
	}

	for ref, delta := range deltas {
		if err := uc.accountRepo.ApplyBalanceDelta(ctx, ref, delta, now); err != nil {
			uc.logger.Warn().Err(err).Stringer("account", ref).Msg("cached balance update failed; reconciliation will heal")
		}

		if uc.cache != nil {
			if err := uc.cache.Delete(ctx, balanceCacheKey(ref)); err != nil {
				uc.logger.Warn().Err(err).Stringer("account", ref).Msg("balance cache invalidation failed")
			}
		}
	}
}

func (uc *TransactionUseCase) buildEntries(inputs []EntryInput, now time.Time) []*domain.Entry {
	entries := make([]*domain.Entry, len(inputs))
	for i, in := range inputs {
		effectiveAt := now
		if in.EffectiveAt != nil {
			effectiveAt = *in.EffectiveAt
		}

		entries[i] = &domain.Entry{
			Account:         in.Account,
			Amount:          in.Amount,
			Type:            in.Type,
			EffectiveAt:     effectiveAt,
			BookingID:       in.BookingID,
			ClassInstanceID: in.ClassInstanceID,
		}
	}

	return entries
}

func balanceCacheKey(ref domain.AccountRef) string {
	return "balance:" + ref.String()
}

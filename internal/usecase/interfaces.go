package usecase

import (
	"context"
	"time"

	"github.com/bookfit/credits/internal/domain"
)

// BalanceDelta is the cached-balance adjustment derived from one
// transaction's entries for a single account.
type BalanceDelta struct {
	Available int64
	Held      int64
	Lifetime  int64
}

// AccountRepository defines data access for accounts and their cached balances.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	// MissingRefs returns the subset of refs that do not exist.
	MissingRefs(ctx context.Context, refs []domain.AccountRef) ([]domain.AccountRef, error)
	// ApplyBalanceDelta adjusts the cached balance incrementally.
	ApplyBalanceDelta(ctx context.Context, ref domain.AccountRef, delta BalanceDelta, updatedAt time.Time) error
	// SetCachedBalance overwrites the cached balance with a computed one.
	SetCachedBalance(ctx context.Context, ref domain.AccountRef, balance domain.Balance, updatedAt time.Time) error
	ListUserIDs(ctx context.Context, limit, offset int) ([]string, error)
}

// TransactionRepository defines data access for transaction headers.
type TransactionRepository interface {
	// CreateHeader inserts a new header. Returns ErrDuplicateIdempotencyKey
	// when another header already holds the key.
	CreateHeader(ctx context.Context, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus, updatedAt time.Time) error
	UpdateStatusTx(ctx context.Context, tx Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error)
}

// HistoryFilter narrows a transaction-history scan.
type HistoryFilter struct {
	Types  []domain.EntryType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	CreateBatch(ctx context.Context, tx Transaction, entries []*domain.Entry) error
	GetByTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error)
	// GetByAccount returns every live entry for the account, the input to
	// the balance calculator.
	GetByAccount(ctx context.Context, ref domain.AccountRef) ([]*domain.Entry, error)
	History(ctx context.Context, ref domain.AccountRef, filter HistoryFilter) ([]*domain.Entry, error)
	SoftDeleteByTransaction(ctx context.Context, tx Transaction, transactionID string, deletedAt time.Time) error
	// SumBusinessEarnings sums credited and refunded amounts for a business
	// over a date range.
	SumBusinessEarnings(ctx context.Context, businessID string, from, to time.Time) (earned, refunded int64, err error)
}

// BookingRepository defines data access for bookings.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// GetActiveByUserAndClass returns the user's pending booking for a class
	// instance, or ErrBookingNotFound.
	GetActiveByUserAndClass(ctx context.Context, userID, classInstanceID string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, refundTransactionID string, updatedAt time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles database transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines the balance read cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles HTTP-level idempotency response replay.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a single engine call's database work.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultReconcileCooldown is the minimum interval between cache
	// overwrites for one account, unless forced. Prevents reconciliation
	// storms from concurrent callers hammering the same account.
	DefaultReconcileCooldown = 5 * time.Minute

	// DefaultReconcileBatchSize is the page size for batch reconciliation.
	DefaultReconcileBatchSize = 100

	// StalePendingTimeout is how long a transaction may sit in pending
	// before the sweep considers it a crash artifact and fails it.
	StalePendingTimeout = 15 * time.Minute

	// BalanceCacheTTL bounds staleness of the redis-front balance cache.
	BalanceCacheTTL = 30 * time.Second

	// IdempotencyKeyTTL is how long HTTP idempotency responses are cached.
	IdempotencyKeyTTL = 24 * time.Hour
)

package domain

import "time"

// TransactionStatus is the lifecycle state of a transaction header.
type TransactionStatus string

const (
	// TransactionStatusPending means the header exists but its entries may
	// not all be durable yet. A transaction stuck here is the artifact of a
	// crash mid-write and is recovered by the stale-pending sweep.
	TransactionStatusPending TransactionStatus = "pending"

	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction groups a set of ledger entries that sum to zero. It is the
// unit of atomic credit movement; entries never exist outside one.
type Transaction struct {
	ID             string
	IdempotencyKey string
	Status         TransactionStatus
	Description    string
	Actor          string
	Action         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Replayable reports whether a caller retrying the same idempotency key may
// re-run the entry writes. Completed transactions are returned as-is and
// pending ones are refused; only failed ones are safe to redo.
func (t *Transaction) Replayable() bool {
	return t.Status == TransactionStatusFailed
}

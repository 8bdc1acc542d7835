package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAccountRef = errors.New("invalid account reference")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionInFlight = errors.New("transaction with this idempotency key is still pending")
	ErrEmptyEntrySet       = errors.New("transaction requires at least one entry")
	ErrUnbalancedEntries   = errors.New("transaction entries must sum to zero")
	ErrZeroAmountEntry     = errors.New("entry amount must be non-zero")
	ErrInvalidEntryType    = errors.New("unknown entry type")

	// Booking errors
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotCancellable = errors.New("booking is not in a cancellable state")
	ErrInsufficientCredits   = errors.New("insufficient credits")

	// Reconciliation errors
	ErrLedgerCorrupt = errors.New("ledger entry failed integrity validation")
)

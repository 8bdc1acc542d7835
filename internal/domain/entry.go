package domain

import (
	"time"
)

// EntryType is the reason code attached to a ledger entry. It drives
// reporting and expiry, not balance math.
type EntryType string

const (
	EntryTypePurchase     EntryType = "purchase"
	EntryTypeGift         EntryType = "gift"
	EntryTypeBonus        EntryType = "bonus"
	EntryTypeSubscription EntryType = "subscription"
	EntryTypeSpend        EntryType = "spend"
	EntryTypeRefund       EntryType = "refund"
	EntryTypeExpiration   EntryType = "expiration"
	EntryTypeAdjustment   EntryType = "adjustment"
	EntryTypeSystemCost   EntryType = "system_cost"
	EntryTypeHold         EntryType = "hold"
)

var validEntryTypes = map[EntryType]bool{
	EntryTypePurchase:     true,
	EntryTypeGift:         true,
	EntryTypeBonus:        true,
	EntryTypeSubscription: true,
	EntryTypeSpend:        true,
	EntryTypeRefund:       true,
	EntryTypeExpiration:   true,
	EntryTypeAdjustment:   true,
	EntryTypeSystemCost:   true,
	EntryTypeHold:         true,
}

// IsValid checks if the type is a known entry type.
func (t EntryType) IsValid() bool {
	return validEntryTypes[t]
}

// Entry is one signed-amount row in the append-only credit ledger.
// Entries are immutable once written; corrections soft-delete and re-issue.
type Entry struct {
	ID              string
	TransactionID   string
	Account         AccountRef
	Amount          int64
	Type            EntryType
	EffectiveAt     time.Time
	ExpiresAt       *time.Time
	Deleted         bool
	BookingID       string
	ClassInstanceID string
	CreatedAt       time.Time
}

// Expired reports whether the entry's credits are past expiry at asOf.
// Entries without an expiry never expire.
func (e *Entry) Expired(asOf time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(asOf)
}

// Validate checks the entry's own invariants: a real account reference,
// a known type, and a non-zero amount (a zero entry is a no-op that would
// only pollute the ledger).
func (e *Entry) Validate() error {
	if err := e.Account.Validate(); err != nil {
		return err
	}

	if !e.Type.IsValid() {
		return ErrInvalidEntryType
	}

	if e.Amount == 0 {
		return ErrZeroAmountEntry
	}

	return nil
}

// ExpiryPolicy maps credit-granting entry types to a time-to-live.
// Types absent from the map never expire.
type ExpiryPolicy map[EntryType]time.Duration

// DefaultExpiryPolicy is the product policy: purchased credits last a year,
// promotional credits six months, subscription credits one renewal period.
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		EntryTypePurchase:     365 * 24 * time.Hour,
		EntryTypeGift:         180 * 24 * time.Hour,
		EntryTypeBonus:        180 * 24 * time.Hour,
		EntryTypeSubscription: 30 * 24 * time.Hour,
	}
}

// ExpiryFor returns the expiry timestamp for an entry written at the given
// time, or nil when the entry's credits never expire. Only positive entries
// expire; debits are consumed immediately.
func (p ExpiryPolicy) ExpiryFor(entryType EntryType, amount int64, at time.Time) *time.Time {
	if amount <= 0 {
		return nil
	}

	ttl, ok := p[entryType]
	if !ok {
		return nil
	}

	expiry := at.Add(ttl)

	return &expiry
}

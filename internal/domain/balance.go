package domain

import "time"

// Balance is the derived balance view of one account at a point in time.
type Balance struct {
	AvailableCredits int64
	HeldCredits      int64
	LifetimeCredits  int64
	ExpiredCredits   int64
	TotalCredits     int64
}

// ComputeBalance derives an account's balances from its ledger entries as of
// the given instant. It is a pure function: no clock reads, no mutation, and
// the result is independent of entry order.
//
// Available excludes soft-deleted and expired entries. Expired sums the
// positive amounts already past expiry (informational; they are excluded
// from available by construction). Lifetime sums every positive amount ever
// credited regardless of expiry, for tier/loyalty display only. Total sums
// all live entries ignoring expiry.
func ComputeBalance(entries []*Entry, asOf time.Time) Balance {
	var b Balance

	for _, e := range entries {
		if e.Deleted {
			continue
		}

		if e.Amount > 0 {
			b.LifetimeCredits += e.Amount
		}

		if e.Type == EntryTypeHold {
			b.HeldCredits += e.Amount
			continue
		}

		b.TotalCredits += e.Amount

		if e.Expired(asOf) {
			if e.Amount > 0 {
				b.ExpiredCredits += e.Amount
			}
			continue
		}

		b.AvailableCredits += e.Amount
	}

	return b
}

// Equal compares the fields reconciliation cares about (held is compared
// too; expired and total are derived reporting values).
func (b Balance) Equal(other Balance) bool {
	return b.AvailableCredits == other.AvailableCredits &&
		b.HeldCredits == other.HeldCredits &&
		b.LifetimeCredits == other.LifetimeCredits
}

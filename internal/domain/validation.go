package domain

import "fmt"

// Validation constants
const (
	MaxDescriptionLength = 500
	MaxEntriesPerTx      = 100
	MaxEntryAmount       = 1_000_000 // credits
)

// ValidateEntrySet checks the transaction-level invariants of a proposed
// entry set before anything is written: non-empty, every entry individually
// valid, amounts within bounds, and the whole set netting to zero.
func ValidateEntrySet(entries []*Entry) error {
	if len(entries) == 0 {
		return ErrEmptyEntrySet
	}

	if len(entries) > MaxEntriesPerTx {
		return fmt.Errorf("%d entries exceeds limit of %d", len(entries), MaxEntriesPerTx)
	}

	var sum int64
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}

		if e.Amount > MaxEntryAmount || e.Amount < -MaxEntryAmount {
			return fmt.Errorf("entry %d: amount %d exceeds limit of %d", i, e.Amount, MaxEntryAmount)
		}

		sum += e.Amount
	}

	if sum != 0 {
		return fmt.Errorf("%w: net %+d", ErrUnbalancedEntries, sum)
	}

	return nil
}

// ValidateDescription bounds a transaction description.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters", MaxDescriptionLength)
	}

	return nil
}

// CollectAccountRefs returns the unique account references of an entry set,
// in first-seen order.
func CollectAccountRefs(entries []*Entry) []AccountRef {
	seen := make(map[AccountRef]bool)

	var refs []AccountRef
	for _, e := range entries {
		if !seen[e.Account] {
			seen[e.Account] = true
			refs = append(refs, e.Account)
		}
	}

	return refs
}

package domain

import (
	"math/rand"
	"testing"
	"time"
)

var balanceAsOf = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(amount int64, entryType EntryType, expiresAt *time.Time) *Entry {
	return &Entry{
		ID:          "e-1",
		Account:     UserRef("u-1"),
		Amount:      amount,
		Type:        entryType,
		EffectiveAt: balanceAsOf.Add(-24 * time.Hour),
		ExpiresAt:   expiresAt,
	}
}

func past(d time.Duration) *time.Time {
	t := balanceAsOf.Add(-d)
	return &t
}

func future(d time.Duration) *time.Time {
	t := balanceAsOf.Add(d)
	return &t
}

func TestComputeBalance(t *testing.T) {
	tests := []struct {
		name    string
		entries []*Entry
		want    Balance
	}{
		{
			name:    "empty ledger",
			entries: nil,
			want:    Balance{},
		},
		{
			name: "simple credits and debits",
			entries: []*Entry{
				entry(10, EntryTypeGift, nil),
				entry(-3, EntryTypeSpend, nil),
			},
			want: Balance{
				AvailableCredits: 7,
				LifetimeCredits:  10,
				TotalCredits:     7,
			},
		},
		{
			name: "expired entry excluded from available but counted in lifetime",
			entries: []*Entry{
				entry(10, EntryTypePurchase, past(time.Hour)),
				entry(5, EntryTypeGift, future(time.Hour)),
			},
			want: Balance{
				AvailableCredits: 5,
				LifetimeCredits:  15,
				ExpiredCredits:   10,
				TotalCredits:     15,
			},
		},
		{
			name: "expiry boundary is exclusive of asOf",
			entries: []*Entry{
				entry(10, EntryTypePurchase, past(0)),
			},
			want: Balance{
				LifetimeCredits: 10,
				ExpiredCredits:  10,
				TotalCredits:    10,
			},
		},
		{
			name: "deleted entries ignored entirely",
			entries: []*Entry{
				entry(10, EntryTypeGift, nil),
				{Account: UserRef("u-1"), Amount: 50, Type: EntryTypeBonus, Deleted: true},
			},
			want: Balance{
				AvailableCredits: 10,
				LifetimeCredits:  10,
				TotalCredits:     10,
			},
		},
		{
			name: "hold entries tracked separately",
			entries: []*Entry{
				entry(10, EntryTypeGift, nil),
				entry(-4, EntryTypeHold, nil),
			},
			want: Balance{
				AvailableCredits: 10,
				HeldCredits:      -4,
				LifetimeCredits:  10,
				TotalCredits:     10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalance(tt.entries, balanceAsOf)
			if got != tt.want {
				t.Errorf("ComputeBalance() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeBalance_Deterministic(t *testing.T) {
	entries := []*Entry{
		entry(10, EntryTypePurchase, future(time.Hour)),
		entry(-3, EntryTypeSpend, nil),
		entry(5, EntryTypeGift, past(time.Hour)),
		entry(3, EntryTypeRefund, nil),
		entry(-7, EntryTypeSpend, nil),
	}

	want := ComputeBalance(entries, balanceAsOf)

	// Same input twice.
	if got := ComputeBalance(entries, balanceAsOf); got != want {
		t.Fatalf("second call differs: %+v vs %+v", got, want)
	}

	// Any ordering of the input.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]*Entry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		if got := ComputeBalance(shuffled, balanceAsOf); got != want {
			t.Fatalf("order-dependent result: %+v vs %+v", got, want)
		}
	}
}

func TestBalance_Equal(t *testing.T) {
	a := Balance{AvailableCredits: 10, LifetimeCredits: 15}
	b := Balance{AvailableCredits: 10, LifetimeCredits: 15, ExpiredCredits: 5}

	if !a.Equal(b) {
		t.Error("expired credits should not affect equality")
	}

	b.AvailableCredits = 9
	if a.Equal(b) {
		t.Error("available mismatch should fail equality")
	}
}

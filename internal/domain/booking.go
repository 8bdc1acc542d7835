package domain

import "time"

// BookingStatus is the lifecycle state of a booking with respect to credits.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Booking is the ledger-facing view of a class booking. The booking does
// not hold balance state; it records what was charged and points at the
// spend transaction for traceability and duplicate-charge protection.
type Booking struct {
	ID                  string
	UserID              string
	BusinessID          string
	ClassInstanceID     string
	ClassStartAt        time.Time
	OriginalPrice       int64
	FinalPrice          int64
	CreditsUsed         int64
	CreditTransactionID string
	RefundTransactionID string
	Status              BookingStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Active reports whether the booking still holds a live spend, i.e. a second
// booking attempt for the same user and class should be answered with this
// one instead of charging again.
func (b *Booking) Active() bool {
	return b.Status == BookingStatusPending
}

// Cancellable reports whether the booking may still be cancelled.
func (b *Booking) Cancellable() bool {
	return b.Status == BookingStatusPending
}

// CancellationPolicy decides how much of a spend is refunded when a booking
// is cancelled, based on how close to class start the cancellation happens.
type CancellationPolicy struct {
	// Window is how long before class start the full-refund period ends.
	Window time.Duration
	// LateRefundPercent is the refund percentage inside the window, 0-100.
	LateRefundPercent int64
}

// DefaultCancellationPolicy refunds in full outside 12 hours of class start
// and half inside it.
func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{
		Window:            12 * time.Hour,
		LateRefundPercent: 50,
	}
}

// RefundAmount returns the credits refunded for a cancellation at the given
// time. Cancelling after class start refunds nothing.
func (p CancellationPolicy) RefundAmount(creditsUsed int64, classStartAt, cancelAt time.Time) int64 {
	if !cancelAt.Before(classStartAt) {
		return 0
	}

	if classStartAt.Sub(cancelAt) >= p.Window {
		return creditsUsed
	}

	return creditsUsed * p.LateRefundPercent / 100
}

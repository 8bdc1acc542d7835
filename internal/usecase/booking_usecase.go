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

// BookingUseCase is the primary business consumer of the transaction engine:
// it spends credits when a booking is created and refunds them, per the
// cancellation policy, when it is cancelled.
type BookingUseCase struct {
	txUC        *TransactionUseCase
	bookingRepo BookingRepository
	entryRepo   EntryRepository
	accountRepo AccountRepository
	idGen       IDGenerator
	policy      domain.CancellationPolicy
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewBookingUseCase creates a new BookingUseCase.
func NewBookingUseCase(
	txUC *TransactionUseCase,
	bookingRepo BookingRepository,
	entryRepo EntryRepository,
	accountRepo AccountRepository,
	idGen IDGenerator,
	policy domain.CancellationPolicy,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *BookingUseCase {
	return &BookingUseCase{
		txUC:        txUC,
		bookingRepo: bookingRepo,
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
		idGen:       idGen,
		policy:      policy,
		metrics:     m,
		logger:      logger,
	}
}

// ChargeInput describes a booking to charge credits for.
type ChargeInput struct {
	UserID          string
	BusinessID      string
	ClassInstanceID string
	ClassStartAt    time.Time
	OriginalPrice   int64
	FinalPrice      int64
	IdempotencyKey  string
}

// ChargeForBooking charges a user's credits for a new booking.
//
// A second attempt for the same user and class while a booking is already
// active returns the existing booking instead of charging again. Spend
// eligibility is re-derived from the ledger, never the cached balance.
func (uc *BookingUseCase) ChargeForBooking(ctx context.Context, input ChargeInput) (*domain.Booking, error) {
	if input.FinalPrice < 0 {
		return nil, fmt.Errorf("price must be non-negative")
	}

	existing, err := uc.bookingRepo.GetActiveByUserAndClass(ctx, input.UserID, input.ClassInstanceID)
	if err != nil && !errors.Is(err, domain.ErrBookingNotFound) {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	userRef := domain.UserRef(input.UserID)
	now := time.Now().UTC()

	// A completed spend under this key means an earlier attempt crashed
	// between the charge and the booking insert. Resume it: recover the
	// booking id from the spend's entries and skip the availability check,
	// since the debit is already applied.
	bookingID, err := uc.committedChargeBookingID(ctx, input)
	if err != nil {
		return nil, err
	}

	if bookingID == "" {
		entries, err := uc.entryRepo.GetByAccount(ctx, userRef)
		if err != nil {
			return nil, err
		}

		available := domain.ComputeBalance(entries, now).AvailableCredits
		if available < input.FinalPrice {
			if uc.metrics != nil {
				uc.metrics.InsufficientCredits.Inc()
			}

			return nil, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientCredits, input.FinalPrice, available)
		}

		bookingID = uc.idGen.Generate()
	}

	booking := &domain.Booking{
		ID:              bookingID,
		UserID:          input.UserID,
		BusinessID:      input.BusinessID,
		ClassInstanceID: input.ClassInstanceID,
		ClassStartAt:    input.ClassStartAt,
		OriginalPrice:   input.OriginalPrice,
		FinalPrice:      input.FinalPrice,
		CreditsUsed:     input.FinalPrice,
		Status:          domain.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if input.FinalPrice > 0 {
		tx, err := uc.txUC.CreateTransaction(ctx, CreateTransactionInput{
			IdempotencyKey: input.IdempotencyKey,
			Description:    fmt.Sprintf("Booking charge for class %s", input.ClassInstanceID),
			Actor:          input.UserID,
			Action:         "booking.charge",
			Entries: []EntryInput{
				{
					Account:         userRef,
					Amount:          -input.FinalPrice,
					Type:            domain.EntryTypeSpend,
					BookingID:       bookingID,
					ClassInstanceID: input.ClassInstanceID,
				},
				{
					Account:         domain.BusinessRef(input.BusinessID),
					Amount:          input.FinalPrice,
					Type:            domain.EntryTypeSpend,
					BookingID:       bookingID,
					ClassInstanceID: input.ClassInstanceID,
				},
			},
		})
		if err != nil {
			return nil, err
		}

		booking.CreditTransactionID = tx.ID
	}

	if err := uc.bookingRepo.Create(ctx, booking); err != nil {
		// The spend is durable and keyed; a retried request replays it
		// idempotently and re-attempts this insert.
		uc.logger.Error().Err(err).Str("booking_id", bookingID).Msg("booking insert failed after charge")
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.BookingsCharged.Inc()
	}

	return booking, nil
}

// committedChargeBookingID returns the booking id tagged on a spend that
// already completed under the input's idempotency key, or "" when no such
// spend exists.
func (uc *BookingUseCase) committedChargeBookingID(ctx context.Context, input ChargeInput) (string, error) {
	if input.FinalPrice == 0 {
		return "", nil
	}

	prior, err := uc.txUC.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return "", nil
		}
		return "", err
	}

	if !prior.Replayable() {
		return "", nil
	}

	entries, err := uc.txUC.GetTransactionEntries(ctx, prior.ID)
	if err != nil {
		return "", err
	}

	for _, e := range entries {
		if e.BookingID != "" {
			return e.BookingID, nil
		}
	}

	return "", nil
}

// CancelResult reports the ledger effect of a cancellation.
type CancelResult struct {
	Booking             *domain.Booking
	RefundedCredits     int64
	RefundTransactionID string
}

// CancelBooking cancels a booking and refunds credits per the cancellation
// policy: full refund outside the window, partial inside it. The refund is
// its own balanced transaction, never a mutation of the original spend.
func (uc *BookingUseCase) CancelBooking(ctx context.Context, bookingID string, at time.Time) (*CancelResult, error) {
	booking, err := uc.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.Cancellable() {
		return nil, fmt.Errorf("%w: status %s", domain.ErrBookingNotCancellable, booking.Status)
	}

	refund := uc.policy.RefundAmount(booking.CreditsUsed, booking.ClassStartAt, at)

	result := &CancelResult{Booking: booking, RefundedCredits: refund}

	if refund > 0 {
		tx, err := uc.txUC.CreateTransaction(ctx, CreateTransactionInput{
			IdempotencyKey: "refund:" + bookingID,
			Description:    fmt.Sprintf("Refund for cancelled booking %s", bookingID),
			Actor:          booking.UserID,
			Action:         "booking.refund",
			Entries: []EntryInput{
				{
					Account:         domain.UserRef(booking.UserID),
					Amount:          refund,
					Type:            domain.EntryTypeRefund,
					BookingID:       bookingID,
					ClassInstanceID: booking.ClassInstanceID,
				},
				{
					Account:         domain.BusinessRef(booking.BusinessID),
					Amount:          -refund,
					Type:            domain.EntryTypeRefund,
					BookingID:       bookingID,
					ClassInstanceID: booking.ClassInstanceID,
				},
			},
		})
		if err != nil {
			return nil, err
		}

		result.RefundTransactionID = tx.ID
	}

	now := time.Now().UTC()

	if err := uc.bookingRepo.UpdateStatus(ctx, bookingID, domain.BookingStatusCancelled, result.RefundTransactionID, now); err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatusCancelled
	booking.RefundTransactionID = result.RefundTransactionID
	booking.UpdatedAt = now

	if uc.metrics != nil {
		uc.metrics.BookingsRefunded.Inc()
	}

	return result, nil
}

// CompleteBooking marks a booking completed. The spend stands; no further
// ledger effect.
func (uc *BookingUseCase) CompleteBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return uc.finalize(ctx, bookingID, domain.BookingStatusCompleted)
}

// MarkNoShow marks a booking as a no-show. The spend stands and nothing is
// refunded.
func (uc *BookingUseCase) MarkNoShow(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return uc.finalize(ctx, bookingID, domain.BookingStatusNoShow)
}

// GetBooking retrieves a booking by ID.
func (uc *BookingUseCase) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return uc.bookingRepo.GetByID(ctx, bookingID)
}

func (uc *BookingUseCase) finalize(ctx context.Context, bookingID string, status domain.BookingStatus) (*domain.Booking, error) {
	booking, err := uc.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.Active() {
		return nil, fmt.Errorf("%w: status %s", domain.ErrBookingNotCancellable, booking.Status)
	}

	now := time.Now().UTC()

	if err := uc.bookingRepo.UpdateStatus(ctx, bookingID, status, "", now); err != nil {
		return nil, err
	}

	booking.Status = status
	booking.UpdatedAt = now

	return booking, nil
}

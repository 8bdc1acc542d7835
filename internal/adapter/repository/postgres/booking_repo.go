package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookfit/credits/internal/domain"
)

const bookingColumns = `
	id, user_id, business_id, class_instance_id, class_start_at,
	original_price, final_price, credits_used,
	credit_transaction_id, refund_transaction_id, status,
	created_at, updated_at`

// BookingRepository implements usecase.BookingRepository.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create inserts a booking row.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, user_id, business_id, class_instance_id, class_start_at,
			original_price, final_price, credits_used,
			credit_transaction_id, refund_transaction_id, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		booking.ID, booking.UserID, booking.BusinessID, booking.ClassInstanceID, booking.ClassStartAt,
		booking.OriginalPrice, booking.FinalPrice, booking.CreditsUsed,
		nullable(booking.CreditTransactionID), nullable(booking.RefundTransactionID), booking.Status,
		booking.CreatedAt, booking.UpdatedAt,
	)

	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1`,
		id,
	)

	return scanBooking(row)
}

// GetActiveByUserAndClass returns the user's pending booking for a class
// instance, the duplicate-charge guard for double booking attempts.
func (r *BookingRepository) GetActiveByUserAndClass(ctx context.Context, userID, classInstanceID string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1 AND class_instance_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, classInstanceID, domain.BookingStatusPending,
	)

	return scanBooking(row)
}

// UpdateStatus moves a booking to a terminal status, recording the refund
// transaction when the cancellation produced one.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, refundTransactionID string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
		    refund_transaction_id = COALESCE($3, refund_transaction_id),
		    updated_at = $4
		WHERE id = $1`,
		id, status, nullable(refundTransactionID), updatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}

	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b                domain.Booking
		creditTx, refund *string
	)
	err := row.Scan(
		&b.ID, &b.UserID, &b.BusinessID, &b.ClassInstanceID, &b.ClassStartAt,
		&b.OriginalPrice, &b.FinalPrice, &b.CreditsUsed,
		&creditTx, &refund, &b.Status,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}

		return nil, err
	}

	if creditTx != nil {
		b.CreditTransactionID = *creditTx
	}
	if refund != nil {
		b.RefundTransactionID = *refund
	}

	return &b, nil
}

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

const entryColumns = `
	id, transaction_id, account_kind, account_id, amount, entry_type,
	effective_at, expires_at, deleted, booking_id, class_instance_id, created_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// CreateBatch inserts a transaction's entries inside the caller's database
// transaction, batched into a single round trip.
func (r *EntryRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO entries (
				id, transaction_id, account_kind, account_id, amount, entry_type,
				effective_at, expires_at, deleted, booking_id, class_instance_id, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			e.ID, e.TransactionID, e.Account.Kind, e.Account.ID, e.Amount, e.Type,
			e.EffectiveAt, e.ExpiresAt, e.Deleted, nullable(e.BookingID), nullable(e.ClassInstanceID), e.CreatedAt,
		)
	}

	results := tx.(*Tx).PgxTx().SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	return results.Close()
}

// GetByTransaction returns a transaction's live entries.
func (r *EntryRepository) GetByTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE transaction_id = $1 AND NOT deleted
		ORDER BY created_at, id`,
		transactionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByAccount returns every live entry for an account. This is the full
// input to the balance calculator, so no pagination.
func (r *EntryRepository) GetByAccount(ctx context.Context, ref domain.AccountRef) ([]*domain.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE account_kind = $1 AND account_id = $2 AND NOT deleted
		ORDER BY effective_at, id`,
		ref.Kind, ref.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// History returns an account's live entries newest first, filtered by type
// and date range.
func (r *EntryRepository) History(ctx context.Context, ref domain.AccountRef, filter usecase.HistoryFilter) ([]*domain.Entry, error) {
	var (
		conditions = []string{"account_kind = $1", "account_id = $2", "NOT deleted"}
		args       = []any{ref.Kind, ref.ID}
	)

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		conditions = append(conditions, fmt.Sprintf("entry_type = ANY($%d)", len(args)))
	}

	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("effective_at >= $%d", len(args)))
	}

	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("effective_at <= $%d", len(args)))
	}

	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM entries
		WHERE %s
		ORDER BY effective_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		entryColumns, strings.Join(conditions, " AND "), len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SoftDeleteByTransaction marks a transaction's entries deleted inside the
// caller's database transaction. Used when retrying a failed transaction so
// its half-written entries stop counting.
func (r *EntryRepository) SoftDeleteByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string, deletedAt time.Time) error {
	_, err := tx.(*Tx).PgxTx().Exec(ctx, `
		UPDATE entries
		SET deleted = TRUE
		WHERE transaction_id = $1 AND NOT deleted`,
		transactionID,
	)

	return err
}

// SumBusinessEarnings sums credited and refunded amounts for a business over
// a date range.
func (r *EntryRepository) SumBusinessEarnings(ctx context.Context, businessID string, from, to time.Time) (int64, int64, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
		       COALESCE(-SUM(amount) FILTER (WHERE amount < 0), 0)
		FROM entries
		WHERE account_kind = $1 AND account_id = $2 AND NOT deleted
		  AND effective_at >= $3 AND effective_at <= $4`,
		domain.AccountKindBusiness, businessID, from, to,
	)

	var earned, refunded int64
	if err := row.Scan(&earned, &refunded); err != nil {
		return 0, 0, err
	}

	return earned, refunded, nil
}

func scanEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	for rows.Next() {
		var (
			e                 domain.Entry
			booking, classRef *string
		)
		err := rows.Scan(
			&e.ID, &e.TransactionID, &e.Account.Kind, &e.Account.ID, &e.Amount, &e.Type,
			&e.EffectiveAt, &e.ExpiresAt, &e.Deleted, &booking, &classRef, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if booking != nil {
			e.BookingID = *booking
		}
		if classRef != nil {
			e.ClassInstanceID = *classRef
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

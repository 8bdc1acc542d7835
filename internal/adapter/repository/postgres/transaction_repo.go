package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// CreateHeader inserts a new transaction header. The unique index on
// idempotency_key is the concurrency control for double submits: the loser
// gets ErrDuplicateIdempotencyKey and re-reads the winner's header.
func (r *TransactionRepository) CreateHeader(ctx context.Context, transaction *domain.Transaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, idempotency_key, status, description, actor, action,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		transaction.ID, transaction.IdempotencyKey, transaction.Status,
		transaction.Description, transaction.Actor, transaction.Action,
		transaction.CreatedAt, transaction.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return usecase.ErrDuplicateIdempotencyKey
		}

		return err
	}

	return nil
}

// GetByID retrieves a transaction header by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByIdempotencyKey retrieves a transaction header by its idempotency key.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.get(ctx, `WHERE idempotency_key = $1`, key)
}

func (r *TransactionRepository) get(ctx context.Context, where string, arg any) (*domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, idempotency_key, status, description, actor, action,
		       created_at, updated_at
		FROM transactions `+where,
		arg,
	)

	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.IdempotencyKey, &tx.Status, &tx.Description, &tx.Actor, &tx.Action,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return &tx, nil
}

// UpdateStatus updates a header's status outside any caller transaction.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	return updateStatus(ctx, r.pool, id, status, updatedAt)
}

// UpdateStatusTx updates a header's status inside the caller's transaction,
// so the completed flip commits atomically with the entry writes.
func (r *TransactionRepository) UpdateStatusTx(ctx context.Context, tx usecase.Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	return updateStatus(ctx, tx.(*Tx).PgxTx(), id, status, updatedAt)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateStatus(ctx context.Context, db execer, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	tag, err := db.Exec(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = $3
		WHERE id = $1`,
		id, status, updatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// ListStalePending lists pending headers created before the cutoff, the
// crash artifacts the sweep recovers.
func (r *TransactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, idempotency_key, status, description, actor, action,
		       created_at, updated_at
		FROM transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`,
		domain.TransactionStatusPending, before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.IdempotencyKey, &tx.Status, &tx.Description, &tx.Actor, &tx.Action,
			&tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		stale = append(stale, &tx)
	}

	return stale, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create creates a new account row.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			account_kind, account_id, name,
			credits, held_credits, lifetime_credits, credits_last_updated,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.Ref.Kind, account.Ref.ID, account.Name,
		account.Credits, account.HeldCredits, account.LifetimeCredits, account.CreditsLastUpdated,
		account.CreatedAt, account.UpdatedAt,
	)

	return err
}

// GetByRef retrieves an account by its owner reference.
func (r *AccountRepository) GetByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT account_kind, account_id, name,
		       credits, held_credits, lifetime_credits, credits_last_updated,
		       created_at, updated_at
		FROM accounts
		WHERE account_kind = $1 AND account_id = $2`,
		ref.Kind, ref.ID,
	)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// MissingRefs returns the subset of refs without an account row.
func (r *AccountRepository) MissingRefs(ctx context.Context, refs []domain.AccountRef) ([]domain.AccountRef, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	kinds := make([]string, len(refs))
	ids := make([]string, len(refs))
	for i, ref := range refs {
		kinds[i] = string(ref.Kind)
		ids[i] = ref.ID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT candidate.kind, candidate.id
		FROM unnest($1::text[], $2::text[]) AS candidate(kind, id)
		LEFT JOIN accounts a
		  ON a.account_kind = candidate.kind AND a.account_id = candidate.id
		WHERE a.account_id IS NULL`,
		kinds, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []domain.AccountRef
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, err
		}
		missing = append(missing, domain.AccountRef{Kind: domain.AccountKind(kind), ID: id})
	}

	return missing, rows.Err()
}

// ApplyBalanceDelta adjusts the cached balance incrementally.
func (r *AccountRepository) ApplyBalanceDelta(ctx context.Context, ref domain.AccountRef, delta usecase.BalanceDelta, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET credits = credits + $3,
		    held_credits = held_credits + $4,
		    lifetime_credits = lifetime_credits + $5,
		    credits_last_updated = $6,
		    updated_at = $6
		WHERE account_kind = $1 AND account_id = $2`,
		ref.Kind, ref.ID,
		delta.Available, delta.Held, delta.Lifetime, updatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// SetCachedBalance overwrites the cached balance with a computed one.
func (r *AccountRepository) SetCachedBalance(ctx context.Context, ref domain.AccountRef, balance domain.Balance, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET credits = $3,
		    held_credits = $4,
		    lifetime_credits = $5,
		    credits_last_updated = $6,
		    updated_at = $6
		WHERE account_kind = $1 AND account_id = $2`,
		ref.Kind, ref.ID,
		balance.AvailableCredits, balance.HeldCredits, balance.LifetimeCredits, updatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// ListUserIDs pages through user account IDs in stable order.
func (r *AccountRepository) ListUserIDs(ctx context.Context, limit, offset int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT account_id
		FROM accounts
		WHERE account_kind = $1
		ORDER BY account_id
		LIMIT $2 OFFSET $3`,
		domain.AccountKindUser, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.Ref.Kind, &account.Ref.ID, &account.Name,
		&account.Credits, &account.HeldCredits, &account.LifetimeCredits, &account.CreditsLastUpdated,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &account, nil
}

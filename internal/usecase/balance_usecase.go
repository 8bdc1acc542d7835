package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookfit/credits/internal/domain"
)

// BalanceUseCase serves the read-only surface: balances, transaction
// history, and business earnings. Reads go through the redis-front cache
// where freshness is not correctness-sensitive.
type BalanceUseCase struct {
	accountRepo AccountRepository
	entryRepo   EntryRepository
	cache       Cache
	payoutRate  decimal.Decimal
	logger      zerolog.Logger
}

// NewBalanceUseCase creates a new BalanceUseCase. payoutRate is the monetary
// value paid to a business per net credit earned.
func NewBalanceUseCase(
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	cache Cache,
	payoutRate decimal.Decimal,
	logger zerolog.Logger,
) *BalanceUseCase {
	return &BalanceUseCase{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		cache:       cache,
		payoutRate:  payoutRate,
		logger:      logger,
	}
}

// GetAvailableBalance returns the account's balance, preferring the
// redis-front cache and falling back to a full ledger derivation on miss.
func (uc *BalanceUseCase) GetAvailableBalance(ctx context.Context, ref domain.AccountRef) (domain.Balance, error) {
	if err := ref.Validate(); err != nil {
		return domain.Balance{}, err
	}

	key := balanceCacheKey(ref)

	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, key); err == nil {
			var balance domain.Balance
			if err := json.Unmarshal([]byte(raw), &balance); err == nil {
				return balance, nil
			}
		}
	}

	entries, err := uc.entryRepo.GetByAccount(ctx, ref)
	if err != nil {
		return domain.Balance{}, err
	}

	balance := domain.ComputeBalance(entries, time.Now().UTC())

	if uc.cache != nil {
		if raw, err := json.Marshal(balance); err == nil {
			if err := uc.cache.Set(ctx, key, string(raw), BalanceCacheTTL); err != nil {
				uc.logger.Warn().Err(err).Stringer("account", ref).Msg("balance cache write failed")
			}
		}
	}

	return balance, nil
}

// GetTransactionHistory lists an account's ledger entries, newest first,
// filtered by type and date range.
func (uc *BalanceUseCase) GetTransactionHistory(ctx context.Context, ref domain.AccountRef, filter HistoryFilter) ([]*domain.Entry, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	if filter.Limit > 100 {
		filter.Limit = 100
	}

	return uc.entryRepo.History(ctx, ref, filter)
}

// EarningsReport summarises a business's credit flow over a date range.
type EarningsReport struct {
	BusinessID      string
	From            time.Time
	To              time.Time
	CreditsEarned   int64
	CreditsRefunded int64
	NetCredits      int64
	PayoutAmount    decimal.Decimal
}

// GetBusinessEarnings reports credits earned and refunded by a business over
// a date range, with the payout amount at the configured rate.
func (uc *BalanceUseCase) GetBusinessEarnings(ctx context.Context, businessID string, from, to time.Time) (*EarningsReport, error) {
	if _, err := uc.accountRepo.GetByRef(ctx, domain.BusinessRef(businessID)); err != nil {
		return nil, err
	}

	earned, refunded, err := uc.entryRepo.SumBusinessEarnings(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}

	net := earned - refunded

	return &EarningsReport{
		BusinessID:      businessID,
		From:            from,
		To:              to,
		CreditsEarned:   earned,
		CreditsRefunded: refunded,
		NetCredits:      net,
		PayoutAmount:    decimal.NewFromInt(net).Mul(uc.payoutRate),
	}, nil
}

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/infrastructure/metrics"
	"github.com/bookfit/credits/internal/usecase"
	"github.com/bookfit/credits/internal/usecase/mocks"
)

// newTestMetrics registers collectors against a fresh registry so tests can
// run repeatedly in one process.
func newTestMetrics() *metrics.Metrics {
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry

	return metrics.New()
}

type engineFixture struct {
	uc          *usecase.TransactionUseCase
	accountRepo *mocks.MockAccountRepository
	txRepo      *mocks.MockTransactionRepository
	entryRepo   *mocks.MockEntryRepository
	cache       *mocks.MockCache
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		accountRepo: mocks.NewMockAccountRepository(),
		txRepo:      mocks.NewMockTransactionRepository(),
		entryRepo:   mocks.NewMockEntryRepository(),
		cache:       mocks.NewMockCache(),
	}

	for _, ref := range []domain.AccountRef{
		domain.UserRef("u-1"),
		domain.BusinessRef("b-1"),
		domain.SystemPromotions,
		domain.SystemPurchases,
	} {
		f.accountRepo.Create(context.Background(), &domain.Account{Ref: ref})
	}

	f.uc = usecase.NewTransactionUseCase(
		mocks.NewMockTransactionManager(),
		f.accountRepo,
		f.txRepo,
		f.entryRepo,
		f.cache,
		mocks.NewMockIDGenerator(),
		nil,
		domain.DefaultExpiryPolicy(),
		nil,
		zerolog.Nop(),
	)

	return f
}

func giftInput(key string, amount int64) usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		IdempotencyKey: key,
		Description:    "Promotional gift",
		Actor:          "admin-1",
		Action:         "credits.gift",
		Entries: []usecase.EntryInput{
			{Account: domain.UserRef("u-1"), Amount: amount, Type: domain.EntryTypeGift},
			{Account: domain.SystemPromotions, Amount: -amount, Type: domain.EntryTypeSystemCost},
		},
	}
}

func TestTransactionUseCase_CreateTransaction(t *testing.T) {
	tests := []struct {
		name      string
		input     usecase.CreateTransactionInput
		errorType error
	}{
		{
			name:  "balanced pair accepted",
			input: giftInput("G1", 10),
		},
		{
			name: "unbalanced set rejected",
			input: usecase.CreateTransactionInput{
				IdempotencyKey: "G2",
				Entries: []usecase.EntryInput{
					{Account: domain.UserRef("u-1"), Amount: 10, Type: domain.EntryTypeGift},
					{Account: domain.SystemPromotions, Amount: -9, Type: domain.EntryTypeSystemCost},
				},
			},
			errorType: domain.ErrUnbalancedEntries,
		},
		{
			name: "empty entry set rejected",
			input: usecase.CreateTransactionInput{
				IdempotencyKey: "G3",
			},
			errorType: domain.ErrEmptyEntrySet,
		},
		{
			name: "zero amount entry rejected",
			input: usecase.CreateTransactionInput{
				IdempotencyKey: "G4",
				Entries: []usecase.EntryInput{
					{Account: domain.UserRef("u-1"), Amount: 0, Type: domain.EntryTypeGift},
				},
			},
			errorType: domain.ErrZeroAmountEntry,
		},
		{
			name: "unknown account rejected",
			input: usecase.CreateTransactionInput{
				IdempotencyKey: "G5",
				Entries: []usecase.EntryInput{
					{Account: domain.UserRef("u-ghost"), Amount: 10, Type: domain.EntryTypeGift},
					{Account: domain.SystemPromotions, Amount: -10, Type: domain.EntryTypeSystemCost},
				},
			},
			errorType: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)

			tx, err := f.uc.CreateTransaction(context.Background(), tt.input)

			if tt.errorType != nil {
				if !errors.Is(err, tt.errorType) {
					t.Fatalf("expected %v, got %v", tt.errorType, err)
				}
				if f.entryRepo.CountLive() != 0 {
					t.Error("rejected transaction must not write entries")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tx.Status != domain.TransactionStatusCompleted {
				t.Errorf("status = %s, want completed", tx.Status)
			}

			entries, err := f.entryRepo.GetByTransaction(context.Background(), tx.ID)
			if err != nil {
				t.Fatal(err)
			}

			var sum int64
			for _, e := range entries {
				sum += e.Amount
			}
			if sum != 0 {
				t.Errorf("entries sum to %d, want 0", sum)
			}
		})
	}
}

func TestTransactionUseCase_Idempotency(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	entriesBefore := f.entryRepo.CountLive()

	second, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("replay returned id %s, want %s", second.ID, first.ID)
	}

	if got := f.entryRepo.CountLive(); got != entriesBefore {
		t.Errorf("replay changed entry count: %d -> %d", entriesBefore, got)
	}
}

func TestTransactionUseCase_PendingKeyFailsFast(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Simulate a crash mid-write: a header stuck in pending.
	f.txRepo.CreateHeader(ctx, &domain.Transaction{
		ID:             "tx-stuck",
		IdempotencyKey: "G1",
		Status:         domain.TransactionStatusPending,
		CreatedAt:      time.Now().UTC(),
	})

	_, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if !errors.Is(err, domain.ErrTransactionInFlight) {
		t.Fatalf("expected ErrTransactionInFlight, got %v", err)
	}

	if f.entryRepo.CountLive() != 0 {
		t.Error("pending key must not cause entry writes")
	}
}

func TestTransactionUseCase_FailedKeyRetried(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// First attempt fails during entry writes.
	failing := errors.New("disk on fire")
	f.entryRepo.CreateBatchFunc = func(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error {
		return failing
	}

	_, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if !errors.Is(err, failing) {
		t.Fatalf("expected write failure, got %v", err)
	}

	header, err := f.txRepo.GetByIdempotencyKey(ctx, "G1")
	if err != nil {
		t.Fatal(err)
	}
	if header.Status != domain.TransactionStatusFailed {
		t.Fatalf("header status = %s, want failed", header.Status)
	}

	// Retry under the same key succeeds and reuses the header.
	f.entryRepo.CreateBatchFunc = nil

	tx, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}

	if tx.ID != header.ID {
		t.Errorf("retry created new header %s, want %s", tx.ID, header.ID)
	}

	if tx.Status != domain.TransactionStatusCompleted {
		t.Errorf("status = %s, want completed", tx.Status)
	}

	if got := f.entryRepo.CountLive(); got != 2 {
		t.Errorf("live entries = %d, want 2", got)
	}
}

func TestTransactionUseCase_ConcurrentDuplicateKey(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Another call wins the header insert race and completes.
	won := false
	f.txRepo.CreateHeaderFunc = func(ctx context.Context, tx *domain.Transaction) error {
		if !won {
			won = true
			f.txRepo.CreateHeaderFunc = nil
			winner := *tx
			winner.ID = "tx-winner"
			winner.Status = domain.TransactionStatusCompleted
			if err := f.txRepo.CreateHeader(ctx, &winner); err != nil {
				return err
			}
			return usecase.ErrDuplicateIdempotencyKey
		}
		return nil
	}

	tx, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx.ID != "tx-winner" {
		t.Errorf("expected winner's transaction, got %s", tx.ID)
	}

	if f.entryRepo.CountLive() != 0 {
		t.Error("loser must not write entries")
	}
}

func TestTransactionUseCase_ExpiryAssigned(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	tx, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10))
	if err != nil {
		t.Fatal(err)
	}

	entries, err := f.entryRepo.GetByTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatal(err)
	}

	for _, e := range entries {
		if e.Type == domain.EntryTypeGift && e.ExpiresAt == nil {
			t.Error("gift credit should carry an expiry")
		}
		if e.Amount < 0 && e.ExpiresAt != nil {
			t.Error("debit entries must not expire")
		}
	}
}

func TestTransactionUseCase_CacheDeltaApplied(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if _, err := f.uc.CreateTransaction(ctx, giftInput("G1", 10)); err != nil {
		t.Fatal(err)
	}

	account, err := f.accountRepo.GetByRef(ctx, domain.UserRef("u-1"))
	if err != nil {
		t.Fatal(err)
	}

	if account.Credits != 10 {
		t.Errorf("cached credits = %d, want 10", account.Credits)
	}

	if account.LifetimeCredits != 10 {
		t.Errorf("cached lifetime = %d, want 10", account.LifetimeCredits)
	}
}

func TestTransactionUseCase_RecordsEngineMetrics(t *testing.T) {
	m := newTestMetrics()
	f := newEngineFixture(t)
	ctx := context.Background()

	uc := usecase.NewTransactionUseCase(
		mocks.NewMockTransactionManager(),
		f.accountRepo,
		f.txRepo,
		f.entryRepo,
		f.cache,
		mocks.NewMockIDGenerator(),
		nil,
		domain.DefaultExpiryPolicy(),
		m,
		zerolog.Nop(),
	)

	if _, err := uc.CreateTransaction(ctx, giftInput("G1", 10)); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.TransactionsCreated); got != 1 {
		t.Errorf("transactions created = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EntriesWritten); got != 2 {
		t.Errorf("entries written = %v, want 2", got)
	}

	// Replay counts separately and writes nothing new.
	if _, err := uc.CreateTransaction(ctx, giftInput("G1", 10)); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.TransactionsReplayed); got != 1 {
		t.Errorf("transactions replayed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EntriesWritten); got != 2 {
		t.Errorf("entries written after replay = %v, want 2", got)
	}
}

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
	"github.com/bookfit/credits/internal/usecase/mocks"
)

type reconFixture struct {
	uc          *usecase.ReconciliationUseCase
	accountRepo *mocks.MockAccountRepository
	entryRepo   *mocks.MockEntryRepository
	txRepo      *mocks.MockTransactionRepository
}

func newReconFixture(t *testing.T, cooldown time.Duration) *reconFixture {
	t.Helper()

	f := &reconFixture{
		accountRepo: mocks.NewMockAccountRepository(),
		entryRepo:   mocks.NewMockEntryRepository(),
		txRepo:      mocks.NewMockTransactionRepository(),
	}

	f.uc = usecase.NewReconciliationUseCase(
		f.accountRepo,
		f.entryRepo,
		f.txRepo,
		mocks.NewMockCache(),
		cooldown,
		nil,
		zerolog.Nop(),
	)

	return f
}

func (f *reconFixture) seedUser(userID string, cachedCredits, cachedLifetime int64, lastUpdated time.Time) {
	f.accountRepo.Create(context.Background(), &domain.Account{
		Ref:                domain.UserRef(userID),
		Credits:            cachedCredits,
		LifetimeCredits:    cachedLifetime,
		CreditsLastUpdated: lastUpdated,
	})
}

func (f *reconFixture) seedEntry(userID string, amount int64) {
	f.entryRepo.CreateBatch(context.Background(), nil, []*domain.Entry{
		{
			ID:          "e-seed",
			Account:     domain.UserRef(userID),
			Amount:      amount,
			Type:        domain.EntryTypeGift,
			EffectiveAt: time.Now().UTC().Add(-time.Hour),
		},
	})
}

func TestReconciliationUseCase_HealsDrift(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	// Ledger says 10, cache says 4, last updated long ago.
	f.seedUser("u-1", 4, 4, time.Now().UTC().Add(-time.Hour))
	f.seedEntry("u-1", 10)

	result, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if !result.WasUpdated {
		t.Fatal("expected cache heal")
	}

	if result.AvailableDelta != 6 {
		t.Errorf("available delta = %d, want 6", result.AvailableDelta)
	}

	account, _ := f.accountRepo.GetByRef(ctx, domain.UserRef("u-1"))
	if account.Credits != 10 || account.LifetimeCredits != 10 {
		t.Errorf("cache not healed: %+v", account)
	}

	// Idempotence: second run with no intervening writes reports no update.
	second, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if second.WasUpdated {
		t.Error("second run must report WasUpdated=false")
	}
}

func TestReconciliationUseCase_CooldownBlocksUpdate(t *testing.T) {
	f := newReconFixture(t, time.Hour)
	ctx := context.Background()

	// Drifted, but cache was touched seconds ago.
	f.seedUser("u-1", 4, 4, time.Now().UTC().Add(-time.Second))
	f.seedEntry("u-1", 10)

	result, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if result.WasUpdated {
		t.Error("cooldown should block the update")
	}

	t.Run("force overrides cooldown", func(t *testing.T) {
		result, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{ForceUpdate: true})
		if err != nil {
			t.Fatal(err)
		}
		if !result.WasUpdated {
			t.Error("force update should bypass cooldown")
		}
	})
}

func TestReconciliationUseCase_DryRun(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	f.seedUser("u-1", 4, 4, time.Now().UTC().Add(-time.Hour))
	f.seedEntry("u-1", 10)

	result, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{DryRun: true, ForceUpdate: true})
	if err != nil {
		t.Fatal(err)
	}

	if result.WasUpdated {
		t.Error("dry run must not update")
	}

	account, _ := f.accountRepo.GetByRef(ctx, domain.UserRef("u-1"))
	if account.Credits != 4 {
		t.Errorf("dry run mutated the cache: credits = %d", account.Credits)
	}
}

func TestReconciliationUseCase_Analysis(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	f.seedUser("u-1", 4, 12, time.Now().UTC().Add(-time.Hour))
	f.seedEntry("u-1", 10)

	result, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{DryRun: true, IncludeAnalysis: true})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Inconsistencies) != 2 {
		t.Fatalf("expected 2 inconsistencies (available, lifetime), got %v", result.Inconsistencies)
	}

	t.Run("analysis off by default", func(t *testing.T) {
		result, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{DryRun: true})
		if err != nil {
			t.Fatal(err)
		}
		if result.Inconsistencies != nil {
			t.Errorf("expected no analysis, got %v", result.Inconsistencies)
		}
	})
}

func TestReconciliationUseCase_CorruptLedger(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	f.seedUser("u-1", 0, 0, time.Time{})

	// An entry with a contradictory account reference is data corruption.
	f.entryRepo.GetByAccountFunc = func(ctx context.Context, ref domain.AccountRef) ([]*domain.Entry, error) {
		return []*domain.Entry{
			{ID: "e-bad", Account: domain.AccountRef{}, Amount: 5, Type: domain.EntryTypeGift},
		}, nil
	}

	_, err := f.uc.ReconcileUser(ctx, "u-1", usecase.ReconcileOptions{})
	if !errors.Is(err, domain.ErrLedgerCorrupt) {
		t.Fatalf("expected ErrLedgerCorrupt, got %v", err)
	}
}

func TestReconciliationUseCase_ReconcileUsers(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	long := time.Now().UTC().Add(-time.Hour)
	f.seedUser("u-1", 4, 4, long) // drifted
	f.seedUser("u-2", 0, 0, long) // clean
	f.seedEntry("u-1", 10)

	// u-3 does not exist in the account repo: per-user error, run continues.
	summary, err := f.uc.ReconcileUsers(ctx, usecase.ReconcileBatchInput{
		UserIDs: []string{"u-1", "u-3", "u-2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Processed != 3 {
		t.Errorf("processed = %d, want 3", summary.Processed)
	}

	if summary.Updated != 1 {
		t.Errorf("updated = %d, want 1", summary.Updated)
	}

	if summary.Inconsistent != 1 {
		t.Errorf("inconsistent = %d, want 1", summary.Inconsistent)
	}

	if len(summary.Errors) != 1 || summary.Errors[0].UserID != "u-3" {
		t.Errorf("expected one error for u-3, got %+v", summary.Errors)
	}
}

func TestReconciliationUseCase_ReconcileAll(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	long := time.Now().UTC().Add(-time.Hour)
	for _, id := range []string{"u-1", "u-2", "u-3"} {
		f.seedUser(id, 0, 0, long)
	}

	summary, err := f.uc.ReconcileUsers(ctx, usecase.ReconcileBatchInput{BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Processed != 3 {
		t.Errorf("processed = %d, want 3", summary.Processed)
	}

	if len(summary.Errors) != 0 {
		t.Errorf("unexpected errors: %+v", summary.Errors)
	}
}

func TestReconciliationUseCase_SweepStalePending(t *testing.T) {
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	now := time.Now().UTC()

	f.txRepo.CreateHeader(ctx, &domain.Transaction{
		ID:             "tx-old",
		IdempotencyKey: "K-old",
		Status:         domain.TransactionStatusPending,
		CreatedAt:      now.Add(-time.Hour),
	})
	f.txRepo.CreateHeader(ctx, &domain.Transaction{
		ID:             "tx-fresh",
		IdempotencyKey: "K-fresh",
		Status:         domain.TransactionStatusPending,
		CreatedAt:      now.Add(-time.Minute),
	})

	swept, err := f.uc.SweepStalePending(ctx, 30*time.Minute, 100)
	if err != nil {
		t.Fatal(err)
	}

	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	old, _ := f.txRepo.GetByID(ctx, "tx-old")
	if old.Status != domain.TransactionStatusFailed {
		t.Errorf("stale transaction status = %s, want failed", old.Status)
	}

	fresh, _ := f.txRepo.GetByID(ctx, "tx-fresh")
	if fresh.Status != domain.TransactionStatusPending {
		t.Errorf("fresh pending transaction must be left alone, got %s", fresh.Status)
	}
}

func TestReconciliationUseCase_SweepCountsSweptTransactions(t *testing.T) {
	m := newTestMetrics()
	f := newReconFixture(t, time.Minute)
	ctx := context.Background()

	uc := usecase.NewReconciliationUseCase(
		f.accountRepo,
		f.entryRepo,
		f.txRepo,
		mocks.NewMockCache(),
		time.Minute,
		m,
		zerolog.Nop(),
	)

	f.txRepo.CreateHeader(ctx, &domain.Transaction{
		ID:             "tx-old",
		IdempotencyKey: "K-old",
		Status:         domain.TransactionStatusPending,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	})

	swept, err := uc.SweepStalePending(ctx, 30*time.Minute, 100)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	if got := testutil.ToFloat64(m.StalePendingSwept); got != 1 {
		t.Errorf("stale pending swept counter = %v, want 1", got)
	}

	// A clean sweep leaves the counter untouched.
	if _, err := uc.SweepStalePending(ctx, 30*time.Minute, 100); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.StalePendingSwept); got != 1 {
		t.Errorf("counter after clean sweep = %v, want 1", got)
	}
}

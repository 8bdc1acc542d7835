// Package mocks provides hand-maintained in-memory fakes for the usecase
// repository interfaces, used by the usecase tests.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// MockAccountRepository is an in-memory AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[domain.AccountRef]*domain.Account

	GetByRefFunc          func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	MissingRefsFunc       func(ctx context.Context, refs []domain.AccountRef) ([]domain.AccountRef, error)
	ApplyBalanceDeltaFunc func(ctx context.Context, ref domain.AccountRef, delta usecase.BalanceDelta, updatedAt time.Time) error
	SetCachedBalanceFunc  func(ctx context.Context, ref domain.AccountRef, balance domain.Balance, updatedAt time.Time) error
	ListUserIDsFunc       func(ctx context.Context, limit, offset int) ([]string, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[domain.AccountRef]*domain.Account),
	}
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Ref] = account
	return nil
}

func (m *MockAccountRepository) GetByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if m.GetByRefFunc != nil {
		return m.GetByRefFunc(ctx, ref)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[ref]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MockAccountRepository) MissingRefs(ctx context.Context, refs []domain.AccountRef) ([]domain.AccountRef, error) {
	if m.MissingRefsFunc != nil {
		return m.MissingRefsFunc(ctx, refs)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var missing []domain.AccountRef
	for _, ref := range refs {
		if _, ok := m.accounts[ref]; !ok {
			missing = append(missing, ref)
		}
	}
	return missing, nil
}

func (m *MockAccountRepository) ApplyBalanceDelta(ctx context.Context, ref domain.AccountRef, delta usecase.BalanceDelta, updatedAt time.Time) error {
	if m.ApplyBalanceDeltaFunc != nil {
		return m.ApplyBalanceDeltaFunc(ctx, ref, delta, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[ref]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Credits += delta.Available
	account.HeldCredits += delta.Held
	account.LifetimeCredits += delta.Lifetime
	account.CreditsLastUpdated = updatedAt
	return nil
}

func (m *MockAccountRepository) SetCachedBalance(ctx context.Context, ref domain.AccountRef, balance domain.Balance, updatedAt time.Time) error {
	if m.SetCachedBalanceFunc != nil {
		return m.SetCachedBalanceFunc(ctx, ref, balance, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[ref]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Credits = balance.AvailableCredits
	account.HeldCredits = balance.HeldCredits
	account.LifetimeCredits = balance.LifetimeCredits
	account.CreditsLastUpdated = updatedAt
	return nil
}

func (m *MockAccountRepository) ListUserIDs(ctx context.Context, limit, offset int) ([]string, error) {
	if m.ListUserIDsFunc != nil {
		return m.ListUserIDsFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for ref := range m.accounts {
		if ref.Kind == domain.AccountKindUser {
			ids = append(ids, ref.ID)
		}
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// MockTransactionRepository is an in-memory TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	byKey        map[string]string

	CreateHeaderFunc func(ctx context.Context, transaction *domain.Transaction) error
	UpdateStatusFunc func(ctx context.Context, id string, status domain.TransactionStatus, updatedAt time.Time) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
		byKey:        make(map[string]string),
	}
}

func (m *MockTransactionRepository) CreateHeader(ctx context.Context, transaction *domain.Transaction) error {
	if m.CreateHeaderFunc != nil {
		return m.CreateHeaderFunc(ctx, transaction)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byKey[transaction.IdempotencyKey]; taken {
		return usecase.ErrDuplicateIdempotencyKey
	}
	copied := *transaction
	m.transactions[transaction.ID] = &copied
	m.byKey[transaction.IdempotencyKey] = transaction.ID
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *m.transactions[id]
	return &copied, nil
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = updatedAt
	return nil
}

func (m *MockTransactionRepository) UpdateStatusTx(ctx context.Context, tx usecase.Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	return m.UpdateStatus(ctx, id, status, updatedAt)
}

func (m *MockTransactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stale []*domain.Transaction
	for _, tx := range m.transactions {
		if tx.Status == domain.TransactionStatusPending && tx.CreatedAt.Before(before) {
			copied := *tx
			stale = append(stale, &copied)
		}
		if len(stale) == limit {
			break
		}
	}
	return stale, nil
}

// MockEntryRepository is an in-memory EntryRepository.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries []*domain.Entry

	CreateBatchFunc         func(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error
	GetByAccountFunc        func(ctx context.Context, ref domain.AccountRef) ([]*domain.Entry, error)
	SumBusinessEarningsFunc func(ctx context.Context, businessID string, from, to time.Time) (int64, int64, error)
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{}
}

func (m *MockEntryRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error {
	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, tx, entries)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		copied := *e
		m.entries = append(m.entries, &copied)
	}
	return nil
}

func (m *MockEntryRepository) GetByTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Entry
	for _, e := range m.entries {
		if e.TransactionID == transactionID && !e.Deleted {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockEntryRepository) GetByAccount(ctx context.Context, ref domain.AccountRef) ([]*domain.Entry, error) {
	if m.GetByAccountFunc != nil {
		return m.GetByAccountFunc(ctx, ref)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Entry
	for _, e := range m.entries {
		if e.Account == ref && !e.Deleted {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockEntryRepository) History(ctx context.Context, ref domain.AccountRef, filter usecase.HistoryFilter) ([]*domain.Entry, error) {
	entries, err := m.GetByAccount(ctx, ref)
	if err != nil {
		return nil, err
	}
	var out []*domain.Entry
	for _, e := range entries {
		if filter.From != nil && e.EffectiveAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.EffectiveAt.After(*filter.To) {
			continue
		}
		if len(filter.Types) > 0 {
			match := false
			for _, t := range filter.Types {
				if e.Type == t {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockEntryRepository) SoftDeleteByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string, deletedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.TransactionID == transactionID {
			e.Deleted = true
		}
	}
	return nil
}

func (m *MockEntryRepository) SumBusinessEarnings(ctx context.Context, businessID string, from, to time.Time) (int64, int64, error) {
	if m.SumBusinessEarningsFunc != nil {
		return m.SumBusinessEarningsFunc(ctx, businessID, from, to)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref := domain.BusinessRef(businessID)
	var earned, refunded int64
	for _, e := range m.entries {
		if e.Account != ref || e.Deleted {
			continue
		}
		if e.EffectiveAt.Before(from) || e.EffectiveAt.After(to) {
			continue
		}
		if e.Amount > 0 {
			earned += e.Amount
		} else {
			refunded -= e.Amount
		}
	}
	return earned, refunded, nil
}

// CountLive returns the number of non-deleted entries, for assertions.
func (m *MockEntryRepository) CountLive() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !e.Deleted {
			n++
		}
	}
	return n
}

// MockBookingRepository is an in-memory BookingRepository.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	CreateFunc func(ctx context.Context, booking *domain.Booking) error
}

func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *booking
	m.bookings[booking.ID] = &copied
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	copied := *booking
	return &copied, nil
}

func (m *MockBookingRepository) GetActiveByUserAndClass(ctx context.Context, userID, classInstanceID string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.UserID == userID && b.ClassInstanceID == classInstanceID && b.Active() {
			copied := *b
			return &copied, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, refundTransactionID string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	booking.Status = status
	if refundTransactionID != "" {
		booking.RefundTransactionID = refundTransactionID
	}
	booking.UpdatedAt = updatedAt
	return nil
}

// MockTransaction is a no-op database transaction.
type MockTransaction struct {
	Committed  bool
	RolledBack bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockTransactionManager hands out MockTransactions.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator generates sequential IDs.
type MockIDGenerator struct {
	mu      sync.Mutex
	counter int

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("id-%03d", m.counter)
}

// MockCache is an in-memory Cache without TTL handling.
type MockCache struct {
	mu     sync.RWMutex
	values map[string]string

	GetFunc func(ctx context.Context, key string) (string, error)
}

func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string]string)}
}

var errCacheMiss = errors.New("cache miss")

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", errCacheMiss
	}
	return v, nil
}

func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

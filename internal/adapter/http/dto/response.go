package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// TransactionResponse represents a transaction header in API responses.
type TransactionResponse struct {
	ID             string    `json:"id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         string    `json:"status"`
	Description    string    `json:"description,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	Action         string    `json:"action,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:             t.ID,
		IdempotencyKey: t.IdempotencyKey,
		Status:         string(t.Status),
		Description:    t.Description,
		Actor:          t.Actor,
		Action:         t.Action,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID              string            `json:"id"`
	TransactionID   string            `json:"transaction_id"`
	Account         AccountRefPayload `json:"account"`
	Amount          int64             `json:"amount"`
	Type            string            `json:"type"`
	EffectiveAt     time.Time         `json:"effective_at"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	BookingID       string            `json:"booking_id,omitempty"`
	ClassInstanceID string            `json:"class_instance_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:              e.ID,
		TransactionID:   e.TransactionID,
		Account:         AccountRefPayload{Kind: string(e.Account.Kind), ID: e.Account.ID},
		Amount:          e.Amount,
		Type:            string(e.Type),
		EffectiveAt:     e.EffectiveAt,
		ExpiresAt:       e.ExpiresAt,
		BookingID:       e.BookingID,
		ClassInstanceID: e.ClassInstanceID,
		CreatedAt:       e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// BalanceResponse represents a derived balance in API responses.
type BalanceResponse struct {
	AvailableCredits int64 `json:"available_credits"`
	HeldCredits      int64 `json:"held_credits"`
	LifetimeCredits  int64 `json:"lifetime_credits"`
	ExpiredCredits   int64 `json:"expired_credits"`
	TotalCredits     int64 `json:"total_credits"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		AvailableCredits: b.AvailableCredits,
		HeldCredits:      b.HeldCredits,
		LifetimeCredits:  b.LifetimeCredits,
		ExpiredCredits:   b.ExpiredCredits,
		TotalCredits:     b.TotalCredits,
	}
}

// BookingResponse represents a booking in API responses.
type BookingResponse struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	BusinessID          string    `json:"business_id"`
	ClassInstanceID     string    `json:"class_instance_id"`
	ClassStartAt        time.Time `json:"class_start_at"`
	OriginalPrice       int64     `json:"original_price"`
	FinalPrice          int64     `json:"final_price"`
	CreditsUsed         int64     `json:"credits_used"`
	CreditTransactionID string    `json:"credit_transaction_id,omitempty"`
	RefundTransactionID string    `json:"refund_transaction_id,omitempty"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// BookingFromDomain converts a domain booking to a response.
func BookingFromDomain(b *domain.Booking) *BookingResponse {
	return &BookingResponse{
		ID:                  b.ID,
		UserID:              b.UserID,
		BusinessID:          b.BusinessID,
		ClassInstanceID:     b.ClassInstanceID,
		ClassStartAt:        b.ClassStartAt,
		OriginalPrice:       b.OriginalPrice,
		FinalPrice:          b.FinalPrice,
		CreditsUsed:         b.CreditsUsed,
		CreditTransactionID: b.CreditTransactionID,
		RefundTransactionID: b.RefundTransactionID,
		Status:              string(b.Status),
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

// CancelBookingResponse represents the outcome of a cancellation.
type CancelBookingResponse struct {
	Booking             *BookingResponse `json:"booking"`
	RefundedCredits     int64            `json:"refunded_credits"`
	RefundTransactionID string           `json:"refund_transaction_id,omitempty"`
}

// CancelResultFromUseCase converts a cancellation result to a response.
func CancelResultFromUseCase(r *usecase.CancelResult) *CancelBookingResponse {
	return &CancelBookingResponse{
		Booking:             BookingFromDomain(r.Booking),
		RefundedCredits:     r.RefundedCredits,
		RefundTransactionID: r.RefundTransactionID,
	}
}

// EarningsResponse represents a business earnings report.
type EarningsResponse struct {
	BusinessID      string          `json:"business_id"`
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	CreditsEarned   int64           `json:"credits_earned"`
	CreditsRefunded int64           `json:"credits_refunded"`
	NetCredits      int64           `json:"net_credits"`
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
}

// EarningsFromUseCase converts an earnings report to a response.
func EarningsFromUseCase(r *usecase.EarningsReport) *EarningsResponse {
	return &EarningsResponse{
		BusinessID:      r.BusinessID,
		From:            r.From,
		To:              r.To,
		CreditsEarned:   r.CreditsEarned,
		CreditsRefunded: r.CreditsRefunded,
		NetCredits:      r.NetCredits,
		PayoutAmount:    r.PayoutAmount,
	}
}

// ReconcileResultResponse represents one account's reconciliation outcome.
type ReconcileResultResponse struct {
	UserID          string           `json:"user_id"`
	Computed        *BalanceResponse `json:"computed"`
	Cached          *BalanceResponse `json:"cached"`
	AvailableDelta  int64            `json:"available_delta"`
	LifetimeDelta   int64            `json:"lifetime_delta"`
	WasUpdated      bool             `json:"was_updated"`
	Inconsistencies []string         `json:"inconsistencies,omitempty"`
	CheckedAt       time.Time        `json:"checked_at"`
}

// ReconcileResultFromUseCase converts a reconciliation result to a response.
func ReconcileResultFromUseCase(r *usecase.ReconcileResult) *ReconcileResultResponse {
	return &ReconcileResultResponse{
		UserID:          r.UserID,
		Computed:        BalanceFromDomain(r.Computed),
		Cached:          BalanceFromDomain(r.Cached),
		AvailableDelta:  r.AvailableDelta,
		LifetimeDelta:   r.LifetimeDelta,
		WasUpdated:      r.WasUpdated,
		Inconsistencies: r.Inconsistencies,
		CheckedAt:       r.CheckedAt,
	}
}

// ReconcileSummaryResponse aggregates a batch reconciliation run.
type ReconcileSummaryResponse struct {
	Processed    int               `json:"processed"`
	Updated      int               `json:"updated"`
	Inconsistent int               `json:"inconsistent"`
	Errors       []UserErrorDetail `json:"errors,omitempty"`
	DurationMS   int64             `json:"duration_ms"`
}

// UserErrorDetail records one account's failure inside a batch run.
type UserErrorDetail struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// ReconcileSummaryFromUseCase converts a batch summary to a response.
func ReconcileSummaryFromUseCase(s *usecase.ReconcileSummary) *ReconcileSummaryResponse {
	resp := &ReconcileSummaryResponse{
		Processed:    s.Processed,
		Updated:      s.Updated,
		Inconsistent: s.Inconsistent,
		DurationMS:   s.Duration.Milliseconds(),
	}

	for _, ue := range s.Errors {
		resp.Errors = append(resp.Errors, UserErrorDetail{UserID: ue.UserID, Error: ue.Err.Error()})
	}

	return resp
}

// SweepPendingResponse reports a stale-pending sweep.
type SweepPendingResponse struct {
	Swept int `json:"swept"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

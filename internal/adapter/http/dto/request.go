package dto

import (
	"fmt"
	"time"

	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// AccountRefPayload identifies an account owner in API payloads.
type AccountRefPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// ToDomain converts to a domain account reference.
func (p AccountRefPayload) ToDomain() domain.AccountRef {
	return domain.AccountRef{Kind: domain.AccountKind(p.Kind), ID: p.ID}
}

// EntryPayload is one proposed ledger entry in a transaction request.
type EntryPayload struct {
	Account         AccountRefPayload `json:"account"`
	Amount          int64             `json:"amount"`
	Type            string            `json:"type"`
	BookingID       string            `json:"booking_id,omitempty"`
	ClassInstanceID string            `json:"class_instance_id,omitempty"`
}

// CreateTransactionRequest represents a request to record a balanced entry set.
type CreateTransactionRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Description    string         `json:"description"`
	Actor          string         `json:"actor"`
	Action         string         `json:"action"`
	Entries        []EntryPayload `json:"entries"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransactionRequest) ToUseCaseInput() usecase.CreateTransactionInput {
	entries := make([]usecase.EntryInput, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = usecase.EntryInput{
			Account:         e.Account.ToDomain(),
			Amount:          e.Amount,
			Type:            domain.EntryType(e.Type),
			BookingID:       e.BookingID,
			ClassInstanceID: e.ClassInstanceID,
		}
	}

	return usecase.CreateTransactionInput{
		IdempotencyKey: r.IdempotencyKey,
		Description:    r.Description,
		Actor:          r.Actor,
		Action:         r.Action,
		Entries:        entries,
	}
}

// PurchaseCreditsRequest represents a completed credit purchase.
type PurchaseCreditsRequest struct {
	UserID           string `json:"user_id"`
	Credits          int64  `json:"credits"`
	PaymentReference string `json:"payment_reference"`
	Description      string `json:"description,omitempty"`
}

// ToUseCaseInput builds the balanced entry set against the purchases
// counterparty account, keyed by the payment reference.
func (r *PurchaseCreditsRequest) ToUseCaseInput() usecase.CreateTransactionInput {
	description := r.Description
	if description == "" {
		description = fmt.Sprintf("Purchase of %d credits", r.Credits)
	}

	return usecase.CreateTransactionInput{
		IdempotencyKey: "purchase:" + r.PaymentReference,
		Description:    description,
		Actor:          r.UserID,
		Action:         "credits.purchase",
		Entries: []usecase.EntryInput{
			{Account: domain.UserRef(r.UserID), Amount: r.Credits, Type: domain.EntryTypePurchase},
			{Account: domain.SystemPurchases, Amount: -r.Credits, Type: domain.EntryTypeSystemCost},
		},
	}
}

// GiftCreditsRequest represents an admin gifting credits to a user.
type GiftCreditsRequest struct {
	UserID         string `json:"user_id"`
	Credits        int64  `json:"credits"`
	Actor          string `json:"actor"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ToUseCaseInput builds the balanced entry set against the promotions
// counterparty account.
func (r *GiftCreditsRequest) ToUseCaseInput() usecase.CreateTransactionInput {
	description := r.Reason
	if description == "" {
		description = fmt.Sprintf("Gift of %d credits", r.Credits)
	}

	return usecase.CreateTransactionInput{
		IdempotencyKey: r.IdempotencyKey,
		Description:    description,
		Actor:          r.Actor,
		Action:         "credits.gift",
		Entries: []usecase.EntryInput{
			{Account: domain.UserRef(r.UserID), Amount: r.Credits, Type: domain.EntryTypeGift},
			{Account: domain.SystemPromotions, Amount: -r.Credits, Type: domain.EntryTypeSystemCost},
		},
	}
}

// SubscriptionRenewalRequest represents a subscription period renewal
// granting its credit allowance.
type SubscriptionRenewalRequest struct {
	UserID    string `json:"user_id"`
	Credits   int64  `json:"credits"`
	RenewalID string `json:"renewal_id"`
}

// ToUseCaseInput builds the balanced entry set for the renewal, keyed by the
// renewal id so a re-delivered webhook never grants twice.
func (r *SubscriptionRenewalRequest) ToUseCaseInput() usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		IdempotencyKey: "subscription:" + r.RenewalID,
		Description:    fmt.Sprintf("Subscription renewal: %d credits", r.Credits),
		Actor:          r.UserID,
		Action:         "credits.subscription_renewal",
		Entries: []usecase.EntryInput{
			{Account: domain.UserRef(r.UserID), Amount: r.Credits, Type: domain.EntryTypeSubscription},
			{Account: domain.SystemPurchases, Amount: -r.Credits, Type: domain.EntryTypeSystemCost},
		},
	}
}

// CreateBookingRequest represents a request to book a class with credits.
type CreateBookingRequest struct {
	UserID          string    `json:"user_id"`
	BusinessID      string    `json:"business_id"`
	ClassInstanceID string    `json:"class_instance_id"`
	ClassStartAt    time.Time `json:"class_start_at"`
	OriginalPrice   int64     `json:"original_price"`
	FinalPrice      int64     `json:"final_price"`
	IdempotencyKey  string    `json:"idempotency_key"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateBookingRequest) ToUseCaseInput() usecase.ChargeInput {
	return usecase.ChargeInput{
		UserID:          r.UserID,
		BusinessID:      r.BusinessID,
		ClassInstanceID: r.ClassInstanceID,
		ClassStartAt:    r.ClassStartAt,
		OriginalPrice:   r.OriginalPrice,
		FinalPrice:      r.FinalPrice,
		IdempotencyKey:  r.IdempotencyKey,
	}
}

// ReconcileBatchRequest represents an admin batch reconciliation request.
// Empty user_ids means all users.
type ReconcileBatchRequest struct {
	UserIDs         []string `json:"user_ids,omitempty"`
	BatchSize       int      `json:"batch_size,omitempty"`
	DryRun          bool     `json:"dry_run,omitempty"`
	Force           bool     `json:"force,omitempty"`
	IncludeAnalysis bool     `json:"include_analysis,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ReconcileBatchRequest) ToUseCaseInput() usecase.ReconcileBatchInput {
	return usecase.ReconcileBatchInput{
		UserIDs:   r.UserIDs,
		BatchSize: r.BatchSize,
		Options: usecase.ReconcileOptions{
			DryRun:          r.DryRun,
			ForceUpdate:     r.Force,
			IncludeAnalysis: r.IncludeAnalysis,
		},
	}
}

// SweepPendingRequest represents an admin stale-pending sweep request.
type SweepPendingRequest struct {
	OlderThanMinutes int `json:"older_than_minutes,omitempty"`
	Limit            int `json:"limit,omitempty"`
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bookfit/credits/internal/adapter/http/dto"
	"github.com/bookfit/credits/internal/usecase"
)

// CreditsHandler handles the inbound credit-granting triggers: purchases,
// gifts, and subscription renewals. Each builds a balanced entry set against
// the matching system counterparty account and hands it to the engine.
type CreditsHandler struct {
	txUC TransactionService
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(txUC TransactionService) *CreditsHandler {
	return &CreditsHandler{txUC: txUC}
}

// Purchase grants credits for a completed payment, keyed by the payment
// reference so a re-delivered payment event never grants twice.
func (h *CreditsHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req dto.PurchaseCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.PaymentReference == "" {
		writeError(w, http.StatusBadRequest, "missing payment reference", "")
		return
	}

	h.create(w, r, req.ToUseCaseInput())
}

// Gift grants promotional credits.
func (h *CreditsHandler) Gift(w http.ResponseWriter, r *http.Request) {
	var req dto.GiftCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.IdempotencyKey == "" {
		writeError(w, http.StatusBadRequest, "missing idempotency key", "")
		return
	}

	h.create(w, r, req.ToUseCaseInput())
}

// SubscriptionRenewal grants a subscription period's credit allowance.
func (h *CreditsHandler) SubscriptionRenewal(w http.ResponseWriter, r *http.Request) {
	var req dto.SubscriptionRenewalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.RenewalID == "" {
		writeError(w, http.StatusBadRequest, "missing renewal id", "")
		return
	}

	h.create(w, r, req.ToUseCaseInput())
}

func (h *CreditsHandler) create(w http.ResponseWriter, r *http.Request, input usecase.CreateTransactionInput) {
	transaction, err := h.txUC.CreateTransaction(r.Context(), input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to grant credits", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(transaction))
}

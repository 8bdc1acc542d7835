package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookfit/credits/internal/adapter/http/dto"
	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	GetAvailableBalance(ctx context.Context, ref domain.AccountRef) (domain.Balance, error)
	GetTransactionHistory(ctx context.Context, ref domain.AccountRef, filter usecase.HistoryFilter) ([]*domain.Entry, error)
	GetBusinessEarnings(ctx context.Context, businessID string, from, to time.Time) (*usecase.EarningsReport, error)
}

// BalanceHandler handles the read-only surface: balances, history, earnings.
type BalanceHandler struct {
	balanceUC BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// GetUserBalance returns a user's derived balance.
func (h *BalanceHandler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user ID", "")
		return
	}

	balance, err := h.balanceUC.GetAvailableBalance(r.Context(), domain.UserRef(userID))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

// GetUserHistory lists a user's ledger entries, newest first.
func (h *BalanceHandler) GetUserHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user ID", "")
		return
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date filter", err.Error())
		return
	}

	entries, err := h.balanceUC.GetTransactionHistory(r.Context(), domain.UserRef(userID), filter)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get history", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// GetBusinessEarnings reports a business's credit flow over a date range.
// Defaults to the last 30 days.
func (h *BalanceHandler) GetBusinessEarnings(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "id")
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "missing business ID", "")
		return
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", err.Error())
		return
	}

	to, err := parseTimeQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err.Error())
		return
	}

	now := time.Now().UTC()
	if to == nil {
		to = &now
	}
	if from == nil {
		start := to.Add(-30 * 24 * time.Hour)
		from = &start
	}

	report, err := h.balanceUC.GetBusinessEarnings(r.Context(), businessID, *from, *to)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get earnings", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EarningsFromUseCase(report))
}

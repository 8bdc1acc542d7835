package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookfit/credits/internal/adapter/http/dto"
	"github.com/bookfit/credits/internal/usecase"
)

// ReconciliationService defines the behavior needed by AdminHandler.
type ReconciliationService interface {
	ReconcileUser(ctx context.Context, userID string, opts usecase.ReconcileOptions) (*usecase.ReconcileResult, error)
	ReconcileUsers(ctx context.Context, input usecase.ReconcileBatchInput) (*usecase.ReconcileSummary, error)
	SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// AdminHandler handles operational endpoints: reconciliation and the
// stale-pending sweep.
type AdminHandler struct {
	reconcileUC ReconciliationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reconcileUC ReconciliationService) *AdminHandler {
	return &AdminHandler{reconcileUC: reconcileUC}
}

// ReconcileUser recomputes one user's balance from the ledger and heals the
// cached copy when it drifted. Query flags: dry_run, force, include_analysis.
func (h *AdminHandler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user ID", "")
		return
	}

	opts := usecase.ReconcileOptions{
		DryRun:          parseBoolQuery(r, "dry_run"),
		ForceUpdate:     parseBoolQuery(r, "force"),
		IncludeAnalysis: parseBoolQuery(r, "include_analysis"),
	}

	result, err := h.reconcileUC.ReconcileUser(r.Context(), userID, opts)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile user", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconcileResultFromUseCase(result))
}

// ReconcileBatch reconciles the requested users, or every user when the body
// names none.
func (h *AdminHandler) ReconcileBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	summary, err := h.reconcileUC.ReconcileUsers(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile users", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconcileSummaryFromUseCase(summary))
}

// SweepPending fails pending transactions older than the cutoff so their
// idempotency keys become retryable again.
func (h *AdminHandler) SweepPending(w http.ResponseWriter, r *http.Request) {
	var req dto.SweepPendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	olderThan := 15 * time.Minute
	if req.OlderThanMinutes > 0 {
		olderThan = time.Duration(req.OlderThanMinutes) * time.Minute
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	swept, err := h.reconcileUC.SweepStalePending(r.Context(), olderThan, limit)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to sweep pending transactions", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SweepPendingResponse{Swept: swept})
}

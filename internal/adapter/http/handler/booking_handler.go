package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookfit/credits/internal/adapter/http/dto"
	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// BookingService defines the behavior needed by BookingHandler.
type BookingService interface {
	ChargeForBooking(ctx context.Context, input usecase.ChargeInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, at time.Time) (*usecase.CancelResult, error)
	CompleteBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	MarkNoShow(ctx context.Context, bookingID string) (*domain.Booking, error)
}

// BookingHandler handles booking credit workflow HTTP requests.
type BookingHandler struct {
	bookingUC BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingUC BookingService) *BookingHandler {
	return &BookingHandler{bookingUC: bookingUC}
}

// Create books a class, charging the user's credits.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.IdempotencyKey == "" {
		writeError(w, http.StatusBadRequest, "missing idempotency key", "")
		return
	}

	booking, err := h.bookingUC.ChargeForBooking(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create booking", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.BookingFromDomain(booking))
}

// Get retrieves a booking by ID.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing booking ID", "")
		return
	}

	booking, err := h.bookingUC.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get booking", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BookingFromDomain(booking))
}

// Cancel cancels a booking, refunding credits per the cancellation policy.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing booking ID", "")
		return
	}

	result, err := h.bookingUC.CancelBooking(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to cancel booking", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CancelResultFromUseCase(result))
}

// Complete marks a booking completed after the class.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.finalize(w, r, h.bookingUC.CompleteBooking)
}

// NoShow marks a booking as a no-show. The spend stands.
func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.finalize(w, r, h.bookingUC.MarkNoShow)
}

func (h *BookingHandler) finalize(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*domain.Booking, error)) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing booking ID", "")
		return
	}

	booking, err := op(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to update booking", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BookingFromDomain(booking))
}

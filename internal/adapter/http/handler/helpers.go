package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bookfit/credits/internal/adapter/http/dto"
	"github.com/bookfit/credits/internal/domain"
	"github.com/bookfit/credits/internal/usecase"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransactionInFlight),
		errors.Is(err, domain.ErrBookingNotCancellable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmptyEntrySet),
		errors.Is(err, domain.ErrUnbalancedEntries),
		errors.Is(err, domain.ErrZeroAmountEntry),
		errors.Is(err, domain.ErrInvalidEntryType),
		errors.Is(err, domain.ErrInvalidAccountRef):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseBoolQuery parses a boolean query parameter, false when absent.
func parseBoolQuery(r *http.Request, key string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && b
}

// parseTimeQuery parses an RFC 3339 query parameter.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// parseHistoryFilter builds a history filter from query parameters.
func parseHistoryFilter(r *http.Request) (usecase.HistoryFilter, error) {
	filter := usecase.HistoryFilter{
		Limit:  parseIntQuery(r, "limit", 0),
		Offset: parseIntQuery(r, "offset", 0),
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return filter, err
	}
	filter.From = from

	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return filter, err
	}
	filter.To = to

	for _, t := range r.URL.Query()["type"] {
		filter.Types = append(filter.Types, domain.EntryType(t))
	}

	return filter, nil
}

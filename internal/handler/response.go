package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// timeLayout renders simulated timestamps with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// statusError pairs a sentinel with its HTTP status and error code.
type statusError struct {
	target error
	status int
	code   string
}

var errorTable = []statusError{
	{domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{domain.ErrInstrumentNotFound, http.StatusNotFound, "instrument_not_found"},
	{domain.ErrWebhookNotFound, http.StatusNotFound, "webhook_not_found"},
	{domain.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
	{domain.ErrInsufficientHoldings, http.StatusConflict, "insufficient_holdings"},
	{domain.ErrOrderNotPending, http.StatusConflict, "order_not_pending"},
	{domain.ErrAccountClosed, http.StatusConflict, "account_closed"},
	{domain.ErrAccountExists, http.StatusConflict, "account_already_exists"},
	{domain.ErrInstrumentNotTradable, http.StatusConflict, "instrument_not_tradable"},
	{domain.ErrUnsupportedOperation, http.StatusNotImplemented, "unsupported_operation"},
}

// mapError maps domain errors to HTTP responses.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}
	// The bestprice kind is a client mistake, not a missing endpoint.
	if errors.Is(err, domain.ErrUnsupportedOperation) && strings.Contains(err.Error(), "order kind") {
		WriteError(w, http.StatusBadRequest, "unsupported_order_kind", err.Error())
		return
	}
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			WriteError(w, e.status, e.code, err.Error())
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

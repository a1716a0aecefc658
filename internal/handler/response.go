package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API has one
// error shape:
//
//	{"error": "not_found", "message": "product not found with id 17"}
//
// The one exception is an invalid magic link, which answers 410 with
// {"error": "link_expired"} (see writeLinkExpired).

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/db"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error type (e.g., "not_found")
	Message string `json:"message,omitempty"` // Human-readable description
	Field   string `json:"field,omitempty"`   // Set for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; changes after
// the first Write are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400
//	apperror.ErrUnauthorized → 401
//	apperror.ErrForbidden    → 403
//	apperror.ErrNotFound     → 404
//	*db.ConnectionError      → 503 (database unreachable, worth retrying later)
//	anything else            → 500, message hidden
//
// errors.As walks the whole chain, so a service that wrapped a repository
// error with fmt.Errorf("...: %w", err) still maps correctly.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	var connErr *db.ConnectionError
	if errors.As(err, &connErr) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "The database is temporarily unavailable",
		})
		return
	}

	// NEVER expose internal error details to the client: a QueryError
	// message carries SQL.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// writeLinkExpired answers an unknown or expired magic link.
func writeLinkExpired(w http.ResponseWriter) {
	writeJSON(w, http.StatusGone, ErrorResponse{
		Error:   "link_expired",
		Message: "This link is invalid or has expired. Ask the bot for a new one.",
	})
}

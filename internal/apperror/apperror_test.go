// Run with: go test ./internal/apperror/ -v
package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// phoneNotFound is the error the store returns for an unknown phone number:
// a NotFound that also names the offending field.
func phoneNotFound(phone string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("no user found with phone number %s", phone),
		Field:   "phone",
	}
}

// WRAPPED CHAINS:
// Errors reach the HTTP layer wrapped twice, once by the store and once by
// the service ("service: ...: sqlstore: ...: <AppError>"). Matching has to
// survive that, so every case below is checked both bare and wrapped.
func wrapTwice(err error) error {
	return fmt.Errorf("service: loading dashboard: %w",
		fmt.Errorf("sqlstore: getting user by phone: %w", err))
}

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"unknown phone is not found", phoneNotFound("+15550000042"), ErrNotFound, true},
		{"unknown product is not found", NotFound("product", "17"), ErrNotFound, true},
		{"empty phone is validation", ValidationFailed("phone", "phone number is required"), ErrValidation, true},
		{"bad target price is validation", ValidationFailed("target_price", "target price must be greater than zero"), ErrValidation, true},
		{"foreign product is forbidden", Forbidden("product belongs to another user"), ErrForbidden, true},
		{"missing session is unauthorized", Unauthorized("valid session required"), ErrUnauthorized, true},

		// 401 and 403 must stay apart: one means "log in", the other "not yours"
		{"forbidden is not unauthorized", Forbidden("product belongs to another user"), ErrUnauthorized, false},
		{"unauthorized is not forbidden", Unauthorized("valid session required"), ErrForbidden, false},
		{"unknown phone is not validation", phoneNotFound("+15550000042"), ErrValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
			if got := errors.Is(wrapTwice(tt.err), tt.target); got != tt.wantMatch {
				t.Errorf("wrapped: errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorsAs_KeepsMessageAndField(t *testing.T) {
	// Handlers pull Message and Field back out of the wrapped chain to build
	// the JSON body, so both must survive the wrapping.
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
		wantField   string
	}{
		{"unknown phone", phoneNotFound("+15550000042"), "no user found with phone number +15550000042", "phone"},
		{"unknown product", NotFound("product", "17"), "product not found with id 17", ""},
		{"bad target price", ValidationFailed("target_price", "target price must be greater than zero"), "target price must be greater than zero", "target_price"},
		{"missing session", Unauthorized("valid session required"), "valid session required", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *AppError
			if !errors.As(wrapTwice(tt.err), &appErr) {
				t.Fatalf("errors.As did not find *AppError in %v", wrapTwice(tt.err))
			}
			if appErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", appErr.Message, tt.wantMessage)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			// Error() is the message alone; the wrapping prefixes belong to logs.
			if got := appErr.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrapReturnsSentinel(t *testing.T) {
	if got := Forbidden("product belongs to another user").Unwrap(); got != ErrForbidden {
		t.Errorf("Unwrap() = %v, want %v", got, ErrForbidden)
	}
	if got := phoneNotFound("+1").Unwrap(); got != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", got, ErrNotFound)
	}
}

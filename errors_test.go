package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := ErrInvalidGrant("code expired")
	if got := err.Error(); got != "invalid_grant: code expired" {
		t.Errorf("Error() = %q", got)
	}

	bare := &Error{Code: ErrorCodeServerError}
	if got := bare.Error(); got != "server_error" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err        *Error
		wantCode   string
		wantStatus int
	}{
		{ErrInvalidRequest("x"), ErrorCodeInvalidRequest, http.StatusBadRequest},
		{ErrInvalidClient("x"), ErrorCodeInvalidClient, http.StatusUnauthorized},
		{ErrInvalidGrant("x"), ErrorCodeInvalidGrant, http.StatusBadRequest},
		{ErrUnauthorizedClient("x"), ErrorCodeUnauthorizedClient, http.StatusBadRequest},
		{ErrUnsupportedGrantType("x"), ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{ErrUnsupportedResponseType("x"), ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
		{ErrInvalidScope("x"), ErrorCodeInvalidScope, http.StatusBadRequest},
		{ErrAccessDenied("x"), ErrorCodeAccessDenied, http.StatusForbidden},
		{ErrServerError("x"), ErrorCodeServerError, http.StatusInternalServerError},
		{ErrTemporarilyUnavailable("x"), ErrorCodeTemporarilyUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.wantStatus)
			}
		})
	}
}

func TestErrorWithStateCopies(t *testing.T) {
	base := ErrInvalidScope("bad scope")
	withState := base.WithState("abc")

	if withState.State != "abc" {
		t.Errorf("State = %q", withState.State)
	}
	if base.State != "" {
		t.Error("WithState must not mutate the original")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrServerError("internal error").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	// The cause must never surface in client-facing fields.
	if got := err.Error(); got != "server_error: internal error" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAsError(t *testing.T) {
	oe := ErrInvalidGrant("nope")
	if got := AsError(oe); got != oe {
		t.Error("AsError should pass through *Error unchanged")
	}

	wrapped := fmt.Errorf("context: %w", oe)
	if got := AsError(wrapped); got.Code != ErrorCodeInvalidGrant {
		t.Errorf("AsError(wrapped).Code = %q", got.Code)
	}

	plain := fmt.Errorf("disk full")
	got := AsError(plain)
	if got.Code != ErrorCodeServerError {
		t.Errorf("AsError(plain).Code = %q", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Error("converted error should keep the cause")
	}
}

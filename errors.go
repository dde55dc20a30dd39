package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth 2.0 error codes as constants.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeServerError             = "server_error"
	ErrorCodeTemporarilyUnavailable  = "temporarily_unavailable"
)

// Error represents an OAuth 2.0 error response. It carries everything a
// transport layer needs to render either a JSON error body or an error
// redirect: the protocol code, a safe description, an optional reference
// URI, the state to echo, and the HTTP status. A wrapped cause, when
// present, is for logs only and never reaches clients.
type Error struct {
	Code        string // protocol error code, e.g. "invalid_grant"
	Description string // human-readable description, safe for clients
	URI         string // optional reference URI
	State       string // state echoed on error redirects
	Status      int    // suggested HTTP status code

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap exposes the internal cause for errors.Is and errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithState returns a copy of the error carrying the given state.
func (e *Error) WithState(state string) *Error {
	cp := *e
	cp.State = state
	return &cp
}

// WithCause returns a copy of the error wrapping the given internal cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// NewError creates a new OAuth error.
func NewError(code, description string, status int) *Error {
	return &Error{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// AsError extracts an *Error from err, converting anything else into a
// server_error so internals never leak into protocol responses.
func AsError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return ErrServerError("internal error").WithCause(err)
}

// Common OAuth errors as constructor functions.
var (
	// ErrInvalidRequest indicates the request is malformed or missing
	// required parameters.
	ErrInvalidRequest = func(desc string) *Error {
		return NewError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates client authentication failed.
	ErrInvalidClient = func(desc string) *Error {
		return NewError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}

	// ErrInvalidGrant indicates the presented code, refresh token, or
	// resource owner credentials are invalid, expired, or revoked.
	ErrInvalidGrant = func(desc string) *Error {
		return NewError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrUnauthorizedClient indicates the client may not use the requested
	// grant type.
	ErrUnauthorizedClient = func(desc string) *Error {
		return NewError(ErrorCodeUnauthorizedClient, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedGrantType indicates the grant type is not supported.
	ErrUnsupportedGrantType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedResponseType indicates the response type is not
	// supported.
	ErrUnsupportedResponseType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedResponseType, desc, http.StatusBadRequest)
	}

	// ErrInvalidScope indicates a requested scope is unknown, malformed, or
	// exceeds what the client may request.
	ErrInvalidScope = func(desc string) *Error {
		return NewError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
	}

	// ErrAccessDenied indicates the resource owner or the server denied the
	// request.
	ErrAccessDenied = func(desc string) *Error {
		return NewError(ErrorCodeAccessDenied, desc, http.StatusForbidden)
	}

	// ErrServerError indicates an internal failure. The description stays
	// generic; the cause carries detail for logs.
	ErrServerError = func(desc string) *Error {
		return NewError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrTemporarilyUnavailable indicates the server cannot handle the
	// request right now.
	ErrTemporarilyUnavailable = func(desc string) *Error {
		return NewError(ErrorCodeTemporarilyUnavailable, desc, http.StatusServiceUnavailable)
	}
)

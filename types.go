package oauth

import (
	"net/http"
	"net/url"
)

// Grant and response type identifiers from the token endpoint vocabulary.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"

	ResponseTypeCode = "code"

	// TokenTypeBearer is the only token type this server issues.
	TokenTypeBearer = "Bearer"
)

// AuthorizationCodeRequest carries the parameters of an authorization
// request after the transport has authenticated the resource owner and
// obtained consent.
type AuthorizationCodeRequest struct {
	ResponseType string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	State        string

	// UserID identifies the authenticated resource owner granting access.
	UserID string
}

// AccessTokenRequest carries the parameters of an authorization_code token
// request.
type AccessTokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
}

// PasswordTokenRequest carries the parameters of a password grant token
// request. The transport verifies the resource owner's credentials and
// passes the result in User; this engine never sees passwords.
type PasswordTokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string

	// User is the resource owner whose credentials the caller verified.
	User ValidatedUser
}

// ValidatedUser asserts that the caller authenticated the resource owner.
type ValidatedUser struct {
	UserID    string
	Validated bool
}

// RefreshTokenRequest carries the parameters of a refresh_token grant.
type RefreshTokenRequest struct {
	GrantType    string
	RefreshToken string
	ClientID     string
	ClientSecret string
	Scope        string
}

// TokenResponse is the successful token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthorizationCodeResponse is the successful authorization response,
// delivered to the client by redirect.
type AuthorizationCodeResponse struct {
	Code  string
	State string

	// RedirectURI is the validated URI the code must be delivered to.
	RedirectURI string
}

// Location renders the redirect target with code and state in the query,
// per the authorization response format.
func (r *AuthorizationCodeResponse) Location() (string, error) {
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", r.Code)
	if r.State != "" {
		q.Set("state", r.State)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ErrorResponse is the JSON error body of the token endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// Response converts the error into its JSON body form.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		ErrorURI:         e.URI,
	}
}

// Location renders the error-redirect target for authorization endpoint
// failures where the redirect URI was validated.
func (e *Error) Location(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("error", e.Code)
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	if e.URI != "" {
		q.Set("error_uri", e.URI)
	}
	if e.State != "" {
		q.Set("state", e.State)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SetNoStoreHeaders marks a response uncacheable. Token responses carry
// credentials and must never be stored by intermediaries.
func SetNoStoreHeaders(h http.Header) {
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
}

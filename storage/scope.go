package storage

// Scope is a named permission the server can grant. Scope identity is the
// ID string; the description is for consent screens only.
type Scope struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

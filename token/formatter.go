package token

import (
	"errors"
	"strings"
)

// Separator joins the secret part and the ID inside an issued value.
// Both parts are unpadded base64url, whose alphabet (A-Z a-z 0-9 - _)
// cannot contain '.', so splitting on the last separator is unambiguous.
const Separator = "."

// ErrMalformedValue is returned when a presented value does not carry an
// embedded ID.
var ErrMalformedValue = errors.New("token: malformed value")

// FormatValue embeds id into the issued plaintext as "<secret>.<id>".
// The resulting string is what gets hashed into the entity and handed to
// the client, so a later Matches call takes the full formatted value.
func FormatValue(id, secret string) string {
	return secret + Separator + id
}

// ParseID extracts the embedded ID from a formatted value.
func ParseID(formatted string) (string, error) {
	i := strings.LastIndex(formatted, Separator)
	if i <= 0 || i == len(formatted)-1 {
		return "", ErrMalformedValue
	}
	return formatted[i+1:], nil
}

// ParseSecret extracts the secret part from a formatted value.
func ParseSecret(formatted string) (string, error) {
	i := strings.LastIndex(formatted, Separator)
	if i <= 0 || i == len(formatted)-1 {
		return "", ErrMalformedValue
	}
	return formatted[:i], nil
}

// Package util holds small shared helpers that have no domain of their own.
package util

// SafeTruncate returns at most maxLen leading characters of s without
// panicking on short input. Used when logging token identifiers, where
// only a prefix may appear in logs.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

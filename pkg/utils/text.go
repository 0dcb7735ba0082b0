// Package utils holds small helpers shared across packages: logger
// construction, vector normalization, and text shortening.
package utils

// Truncate shortens s to at most maxLen characters and marks the cut with
// "...". Non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

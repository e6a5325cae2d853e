// Package strings holds small text helpers for CLI output.
package strings

import (
	"strings"
)

// MinTruncateLen is the smallest maxLen Truncate honours; it leaves room
// for one character plus "...".
const MinTruncateLen = 4

// DefaultMaskVisible is how many leading characters of a secret Mask keeps.
const DefaultMaskVisible = 8

// Truncate collapses whitespace to single spaces and shortens s to maxLen
// runes, ending in "..." when shortened.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Mask hides a secret for display, keeping only its first visible runes.
// Secrets too short to keep anything are replaced entirely.
func Mask(secret string, visible int) string {
	runes := []rune(secret)
	if visible <= 0 || len(runes) <= visible {
		return "********"
	}
	return string(runes[:visible]) + "..."
}

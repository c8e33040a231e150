// Package text holds small string helpers for outbound messages.
package text

import "unicode/utf8"

// Truncate cuts s to at most max bytes and appends an ellipsis marker.
// The cut backs up to a rune boundary so multi-byte text stays valid
// UTF-8. Telegram rejects messages over 4096 bytes, so callers stay
// under that.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

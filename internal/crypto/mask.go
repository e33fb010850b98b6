package crypto

import "strings"

// maskMinLength is the point below which masking would expose most of the
// secret, so the whole thing collapses to "***". Chosen conservatively; the
// shortest useful mask (3-char prefix + "..." + 4-char suffix) only makes
// sense for keys comfortably longer than its visible parts.
const maskMinLength = 8

// MaskAPIKey produces a display-safe redaction of a secret: the prefix up to
// and including the first '-' (or the first 3 characters when there is no
// dash), then "...", then the last 4 characters. Total function — it never
// fails, and the result is always strictly shorter than the input unless it
// falls back to "***".
func MaskAPIKey(key string) string {
	if len(key) < maskMinLength {
		return "***"
	}

	prefix := key[:3]
	if dash := strings.IndexByte(key, '-'); dash >= 0 {
		prefix = key[:dash+1]
	}

	masked := prefix + "..." + key[len(key)-4:]
	if len(masked) >= len(key) {
		return "***"
	}
	return masked
}

package feedback

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

const maxSanitizedLength = 512

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// Sanitize strips HTML tags (best-effort) and truncates to 512 characters.
// It is idempotent: Sanitize(Sanitize(x)) == Sanitize(x), since the
// stripped-and-truncated output contains no tags to strip and is already
// at or under the length bound.
func Sanitize(text string) string {
	clean := htmlTagPattern.ReplaceAllString(text, "")
	if runes := []rune(clean); len(runes) > maxSanitizedLength {
		clean = string(runes[:maxSanitizedLength])
	}
	return clean
}

// Hash returns the lowercase hex SHA-256 of already-sanitized text. It is
// stable across processes: the same sanitized text always hashes to the
// same value.
func Hash(sanitized string) string {
	sum := sha256.Sum256([]byte(sanitized))
	return hex.EncodeToString(sum[:])
}

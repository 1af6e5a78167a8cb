package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// shortCodeAlphabet excludes visually confusable characters (I, L, O, 0, 1)
// so codes survive being read aloud or copied by hand.
const shortCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	// ShortCodeLength is the default length of human-enterable codes.
	ShortCodeLength = 8
	// WidenedCodeLength is used after repeated collisions against pending codes.
	WidenedCodeLength = 10
)

// NewShortCode generates a random invite code of the given length drawn from
// the unambiguous alphabet. Random bytes are rejection-sampled to keep the
// distribution uniform.
func NewShortCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	// Largest multiple of len(alphabet) that fits in a byte.
	max := byte(256 - 256%len(shortCodeAlphabet))

	var builder strings.Builder
	builder.Grow(length)
	buf := make([]byte, length)
	for builder.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			builder.WriteByte(shortCodeAlphabet[int(b)%len(shortCodeAlphabet)])
			if builder.Len() == length {
				break
			}
		}
	}
	return builder.String(), nil
}

// NormalizeCode canonicalizes a human-typed code: uppercase with spaces and
// hyphens removed. Codes are matched case-insensitively.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}

// ValidShortCode reports whether a normalized code is drawn entirely from the
// code alphabet and has a plausible length.
func ValidShortCode(code string) bool {
	if len(code) < ShortCodeLength || len(code) > WidenedCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(shortCodeAlphabet, r) {
			return false
		}
	}
	return true
}

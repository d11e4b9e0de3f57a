package shortener

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet is the 57-symbol code alphabet: digits and letters minus the
// visually ambiguous 0, 1, I, O, and l.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// RandomGenerator draws codes uniformly from Alphabet using crypto/rand.
// Calls are uncorrelated; collisions are resolved upstream by conditional
// writes, not here.
type RandomGenerator struct{}

// NewRandomGenerator creates a new random code generator
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate returns a code of the given length
func (g *RandomGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be > 0, got %d", length)
	}

	// Rejection sampling: accept only bytes below the largest multiple of
	// len(Alphabet) so every symbol is equally likely.
	const maxAccept = byte(len(Alphabet) * (256 / len(Alphabet))) // 228

	var sb strings.Builder
	sb.Grow(length)

	buf := make([]byte, length*2)
	for sb.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxAccept {
				continue
			}
			sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
			if sb.Len() == length {
				break
			}
		}
	}

	return sb.String(), nil
}

// ValidCode reports whether the candidate uses only the code alphabet and
// falls within the allowed length bounds.
func ValidCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(Alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// Ensure RandomGenerator implements Generator interface
var _ Generator = (*RandomGenerator)(nil)

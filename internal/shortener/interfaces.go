package shortener

// Generator defines the interface for generating short codes
type Generator interface {
	// Generate returns a new code of the given length. Codes are not
	// guaranteed globally unique; uniqueness is enforced by the link
	// registry's conditional write.
	Generate(length int) (string, error)
}

const (
	// DefaultCodeLength is the length of generated (non-custom) codes
	DefaultCodeLength = 8

	// MinCodeLength and MaxCodeLength bound custom codes
	MinCodeLength = 3
	MaxCodeLength = 20
)

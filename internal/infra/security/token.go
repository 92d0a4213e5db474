package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateNumericCode returns a random numeric string of the given length.
// Bytes of 250 and above are resampled so every digit is equally likely.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	digits := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(digits) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			digits = append(digits, '0'+b%10)
			if len(digits) == length {
				break
			}
		}
	}

	return string(digits), nil
}

// HashToken calculates a SHA-256 hash of the provided value. Verification
// and reset codes are stored only in this form.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// CodeGenerator produces one-time codes for OTP, verification, and reset
// flows. The strategy is selected by configuration so non-production
// environments can substitute a deterministic value without touching
// orchestration logic.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator emits crypto/rand numeric codes of a fixed length.
type RandomCodeGenerator struct {
	Length int
}

// Generate returns a fresh random numeric code.
func (g RandomCodeGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = 6
	}
	return GenerateNumericCode(length)
}

// StaticCodeGenerator always returns the configured value. Intended only for
// non-production testing; app wiring refuses to select it in production.
type StaticCodeGenerator struct {
	Code string
}

// Generate returns the fixed code.
func (g StaticCodeGenerator) Generate() (string, error) {
	code := strings.TrimSpace(g.Code)
	if code == "" {
		return "", fmt.Errorf("static code is empty")
	}
	return code, nil
}

// NewCodeGenerator selects the code generation strategy. A non-empty
// staticCode picks the deterministic generator.
func NewCodeGenerator(length int, staticCode string) CodeGenerator {
	if strings.TrimSpace(staticCode) != "" {
		return StaticCodeGenerator{Code: staticCode}
	}
	return RandomCodeGenerator{Length: length}
}

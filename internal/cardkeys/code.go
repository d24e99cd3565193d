package cardkeys

import (
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	CodePrefix   = "XYMAIL"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	segmentCount = 3
	segmentLen   = 4
)

var codePattern = regexp.MustCompile(`^XYMAIL-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// GenerateCode returns a code shaped XYMAIL-XXXX-XXXX-XXXX. Uniqueness is left
// to the card_keys_code_key constraint.
func GenerateCode() (string, error) {
	parts := make([]string, 0, segmentCount+1)
	parts = append(parts, CodePrefix)
	for i := 0; i < segmentCount; i++ {
		segment, err := gonanoid.Generate(codeAlphabet, segmentLen)
		if err != nil {
			return "", err
		}
		parts = append(parts, segment)
	}
	return strings.Join(parts, "-"), nil
}

// IsCodeFormat reports whether code has the generated shape.
func IsCodeFormat(code string) bool {
	return codePattern.MatchString(code)
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

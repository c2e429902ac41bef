package mockpdf

import (
	"strings"
	"unicode"
)

// NormalizeContact reduces a phone number to its 10 significant digits.
// Separators are ignored and a leading "91" country code or "0" trunk prefix is dropped.
func NormalizeContact(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", &ValidationError{Field: "customerContact", Reason: "must be a 10-digit phone number"}
	}
	return digits, nil
}

package notify

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone returns raw in the international form `+<country code><number>`.
// Non-digits are stripped. Numbers written with a leading `+` or `00` already
// carry their country code; numbers starting with countryCode are not prefixed again;
// a single trunk `0` is dropped before prefixing.
//   NormalizePhone("0977 123-456", "260") => "+260977123456"
func NormalizePhone(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	international := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case international:
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case countryCode != "" && strings.HasPrefix(digits, countryCode):
	default:
		digits = countryCode + strings.TrimPrefix(digits, "0")
	}

	// E.164: at most 15 digits
	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}

package redact

import (
	"math/big"
	"strings"
)

// ibanValid reports whether s passes the MOD-97 checksum (ISO 7064): move
// the four leading characters (country code + check digits) to the end,
// expand letters to two-digit numbers (A=10 ... Z=35), and require the
// resulting integer mod 97 to equal 1. A candidate failing this gate is
// discarded even though it matched the IBAN shape regex.
func ibanValid(s string) bool {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	rearranged := s[4:] + s[:4]

	var sb strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteString(itoa(int(r-'A') + 10))
		default:
			return false
		}
	}

	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return false
	}
	mod := new(big.Int).Mod(n, big.NewInt(97))
	return mod.Int64() == 1
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// Package phone canonicalizes Egyptian mobile numbers into the local
// trunk-prefixed form used for all equality and duplicate checks.
//
// Inputs may arrive with Arabic-Indic digits, separators, an international
// "00" prefix or the country code, in any combination. Normalization is
// best-effort and never fails: input that cannot be recognized comes back
// as its bare digit string.
package phone

import "strings"

const (
	countryCode = "20"
	trunkPrefix = "0"

	// nationalLen is the digit count of a mobile number without the trunk
	// prefix, e.g. "1012345678".
	nationalLen = 10
)

// Normalize returns the canonical local form of a phone number, e.g.
// "01012345678". Native-script digits are folded to ASCII, separators
// dropped, the "00" international prefix and the country code stripped,
// and the trunk "0" restored when missing.
func Normalize(input string) string {
	digits := foldDigits(input)
	if digits == "" {
		return ""
	}

	digits = strings.TrimPrefix(digits, "00")

	if rest, ok := strings.CutPrefix(digits, countryCode); ok && looksNational(rest) {
		digits = rest
	}

	if strings.HasPrefix(digits, trunkPrefix) {
		return digits
	}
	if len(digits) == nationalLen {
		return trunkPrefix + digits
	}
	return digits
}

// ToE164Digits returns the number as country-code-prefixed digits without
// the leading "+", e.g. "201012345678". Used to build outbound messaging
// links.
func ToE164Digits(input string) string {
	n := Normalize(input)
	n = strings.TrimPrefix(n, trunkPrefix)
	if n == "" {
		return ""
	}
	return countryCode + n
}

// SuffixMatch reports whether two numbers refer to the same line, tolerating
// trunk-prefix and country-code mismatches by comparing suffixes either way.
// Short inputs can false-positive against longer numbers sharing a tail;
// callers searching by fragment accept that trade-off.
func SuffixMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.HasSuffix(na, nb) || strings.HasSuffix(nb, na)
}

// looksNational reports whether digits form a national mobile number with or
// without the trunk prefix.
func looksNational(digits string) bool {
	if len(digits) == nationalLen && !strings.HasPrefix(digits, trunkPrefix) {
		return true
	}
	return len(digits) == nationalLen+1 && strings.HasPrefix(digits, trunkPrefix)
}

// foldDigits maps Arabic-Indic and Extended Arabic-Indic numerals to ASCII
// and drops every non-digit rune.
func foldDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '٠' && r <= '٩': // ٠..٩
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹': // ۰..۹
			b.WriteRune('0' + (r - '۰'))
		}
	}
	return b.String()
}

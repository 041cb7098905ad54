package security

import (
	"regexp"
	"strings"
	"unicode"
)

// pairPattern matches three to twelve letters or digits once separators are
// removed (EURUSD, XAUUSD, US30, BTCUSDT).
var pairPattern = regexp.MustCompile(`^[A-Z0-9]{3,12}$`)

// SanitizePair normalizes a trading pair: upper case with separators removed,
// so "eur/usd" and "EUR-USD" both become "EURUSD".
func SanitizePair(pair string) string {
	pair = strings.TrimSpace(strings.ToUpper(pair))

	var result strings.Builder
	for _, r := range pair {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidPair reports whether a sanitized pair looks like an instrument name.
func ValidPair(pair string) bool {
	return pairPattern.MatchString(pair)
}

// SanitizeText removes control characters from free-form text.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// MaskEmail masks the local part of an email address for logs.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return MaskCredential(email)
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

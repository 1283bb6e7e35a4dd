package validation

import (
	"regexp"
	"strings"
)

// Same shape check the auth service applies at signup.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var currencyRe = regexp.MustCompile(`^[a-z]{3}$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsCurrencyCode accepts lowercase ISO 4217 style codes ("usd").
func IsCurrencyCode(code string) bool {
	return currencyRe.MatchString(code)
}

// NormalizeCurrency lowercases and trims code, falling back to def when the result is not a currency code.
func NormalizeCurrency(code, def string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if !IsCurrencyCode(code) {
		return def
	}
	return code
}

package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex   = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	nonDigitPlus = regexp.MustCompile(`[^\d+]`)
)

// IsValidPhone checks E.164 shape after stripping formatting characters.
func IsValidPhone(phone string) bool {
	cleaned := nonDigitPlus.ReplaceAllString(phone, "")
	return phoneRegex.MatchString(cleaned)
}

// NormalizePhone strips spaces, dashes and parentheses and forces a leading
// plus, the form the SMS providers expect.
func NormalizePhone(phone string) string {
	normalized := nonDigitPlus.ReplaceAllString(phone, "")
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	return normalized
}

package utils

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")

	// US numbers only; the single client application is US-facing.
	e164Pattern = regexp.MustCompile(`^\+1[0-9]{10}$`)
)

// NormalizePhoneE164 canonicalizes a phone number to +1 followed by ten
// digits, prefixing the country code when absent.
func NormalizePhoneE164(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	if !strings.HasPrefix(p, "+") {
		p = "+1" + p
	}
	if !e164Pattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}

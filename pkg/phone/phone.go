// Package phone canonicalizes raw contact numbers into the E.164-like form the gateway expects.
package phone

import (
	"regexp"
	"strings"
)

const DefaultCountryCode = "91"

var (
	nonDigit = regexp.MustCompile(`\D`)
	e164     = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

type Normalizer struct {
	countryCode string
}

func NewNormalizer(countryCode string) *Normalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return &Normalizer{countryCode: strings.TrimPrefix(countryCode, "+")}
}

// Normalize strips everything but digits and applies the local-number rules in order.
func (n *Normalizer) Normalize(raw string) string {
	digits := nonDigit.ReplaceAllString(raw, "")
	localLen := 10
	fullLen := len(n.countryCode) + localLen

	switch {
	case len(digits) == localLen && digits[0] >= '6' && digits[0] <= '9':
		return "+" + n.countryCode + digits
	case len(digits) == fullLen && strings.HasPrefix(digits, n.countryCode):
		return "+" + digits
	case len(digits) == localLen+1 && digits[0] == '0':
		return "+" + n.countryCode + digits[1:]
	default:
		return digits
	}
}

// Valid reports whether an already normalized address can be handed to the gateway.
func Valid(address string) bool {
	digits := nonDigit.ReplaceAllString(address, "")
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	return e164.MatchString(address)
}

// Canonical returns the normalized address and whether it passed validation.
func (n *Normalizer) Canonical(raw string) (string, bool) {
	address := n.Normalize(raw)
	return address, Valid(address)
}

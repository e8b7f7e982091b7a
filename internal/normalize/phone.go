// Package normalize canonicalizes user supplied phone numbers and dates.
package normalize

import "strings"

// DefaultCountryCode is prepended to bare ten digit numbers.
const DefaultCountryCode = "1"

// Phone converts raw to E.164 using DefaultCountryCode. The second return is
// false when raw cannot be interpreted as a phone number.
func Phone(raw string) (string, bool) {
	return PhoneWithCountry(raw, DefaultCountryCode)
}

// PhoneWithCountry is Phone with an explicit country code for ten digit numbers.
func PhoneWithCountry(raw, countryCode string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case cleaned == "" || cleaned == "+":
		return "", false
	case strings.HasPrefix(cleaned, "+"):
		return cleaned, true
	case strings.HasPrefix(cleaned, "00"):
		if len(cleaned) == 2 {
			return "", false
		}
		return "+" + cleaned[2:], true
	case len(cleaned) == 10:
		return "+" + strings.TrimPrefix(countryCode, "+") + cleaned, true
	case len(cleaned) > 10:
		return "+" + cleaned, true
	default:
		return "", false
	}
}

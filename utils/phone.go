package utils

import (
	"strings"
)

// BrazilCountryCode prefixes canonical numbers that arrive without one.
const BrazilCountryCode = "55"

// NormalizePhone reduces a raw phone string to canonical form: digits only,
// with country code. "+55 (11) 99876-5432", "011998765432" and
// "5511998765432" all normalize to "5511998765432".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")

	if digits == "" {
		return ""
	}
	// Local numbers (area code + 8 or 9 digits) get the country code.
	if len(digits) == 10 || len(digits) == 11 {
		digits = BrazilCountryCode + digits
	}
	return digits
}

// PhoneVariations returns every canonical form a Brazilian number may be
// stored under. An 11-digit local number may or may not carry the mobile
// prefix digit 9 after the area code, and WhatsApp ids drop it
// inconsistently, so sender resolution must try both:
//
//	5511998765432 -> [5511998765432 551198765432]
//	551198765432  -> [551198765432 5511998765432]
//
// Non-Brazilian numbers yield just the normalized form.
func PhoneVariations(raw string) []string {
	canonical := NormalizePhone(raw)
	if canonical == "" {
		return nil
	}
	variations := []string{canonical}

	if !strings.HasPrefix(canonical, BrazilCountryCode) {
		return variations
	}
	local := canonical[len(BrazilCountryCode):]

	switch len(local) {
	case 11: // area(2) + 9 + number(8): also try without the 9
		if local[2] == '9' {
			variations = append(variations, BrazilCountryCode+local[:2]+local[3:])
		}
	case 10: // area(2) + number(8): also try with the 9
		variations = append(variations, BrazilCountryCode+local[:2]+"9"+local[2:])
	}
	return variations
}

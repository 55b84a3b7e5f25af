package identity

import "strings"

const defaultCountryCode = "40"

// nationalNumber strips formatting, the international prefix, the country
// code and the trunk zero, e.g. "+40 712-345-678" -> "712345678".
func nationalNumber(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00"+countryCode)
	if strings.HasPrefix(digits, countryCode) && len(digits) > len(countryCode)+6 {
		digits = strings.TrimPrefix(digits, countryCode)
	}
	return strings.TrimLeft(digits, "0")
}

// CanonicalPhone returns the E.164 form, or "" when phone has no digits.
func CanonicalPhone(phone, countryCode string) string {
	if countryCode == "" {
		countryCode = defaultCountryCode
	}
	n := nationalNumber(phone, countryCode)
	if n == "" {
		return ""
	}
	return "+" + countryCode + n
}

// PhoneVariants lists the spellings legacy records may be stored under,
// canonical first.
func PhoneVariants(phone, countryCode string) []string {
	if countryCode == "" {
		countryCode = defaultCountryCode
	}
	n := nationalNumber(phone, countryCode)
	if n == "" {
		return nil
	}
	return []string{
		"+" + countryCode + n,
		countryCode + n,
		"0" + n,
		n,
		"00" + countryCode + n,
	}
}

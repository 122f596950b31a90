package checkout

import "unicode"

// ValidPhone reports whether a phone number has at least ten digits after
// stripping every non-digit character.
func ValidPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 10
}

// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// MinCallableDigits is the minimum digit count for a lead to be dialable.
// Shorter numbers are excluded from the queue entirely.
const MinCallableDigits = 10

// Digits strips everything but digits from a raw CRM phone value.
func Digits(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Callable reports whether a digits-only phone value is long enough to dial.
func Callable(digits string) bool {
	return len(digits) >= MinCallableDigits
}

// DialDigits returns the digit string handed to the gateway when building the
// dial destination. Valid numbers go out in E.164 form without the plus sign;
// anything else falls back to the raw digits.
func DialDigits(digits string) string {
	if digits == "" {
		return digits
	}

	number, err := phonenumbers.Parse("+"+digits, "")
	if err != nil || !phonenumbers.IsValidNumber(number) {
		number, err = phonenumbers.Parse(digits, defaultRegion)
		if err != nil || !phonenumbers.IsValidNumber(number) {
			return digits
		}
	}

	return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
}

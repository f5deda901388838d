// Package phone reduces free-form phone strings to the single canonical key
// used across the bot: "+380" followed by the subscriber digits.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"worklogbot/internal/apperr"
)

const (
	CountryCode   = "380"
	trunkPrefix   = "0"
	displayRegion = "UA"
)

// Clean strips every non-digit character.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the canonical "+380..." form of raw.
//
// A leading trunk 0 is replaced by the country code. Any other number not
// already starting with 380 gets the country code prepended after leading
// 3/8/0 digits are trimmed, so "80631234567" and "631234567" both become
// "+380631234567". This is a heuristic, not a validator.
func Normalize(raw string) (string, error) {
	digits := Clean(raw)
	if digits == "" {
		return "", apperr.Validation("Phone number must contain digits.").WithOp("phone.Normalize")
	}

	switch {
	case strings.HasPrefix(digits, trunkPrefix):
		digits = "38" + digits
	case !strings.HasPrefix(digits, CountryCode):
		digits = CountryCode + strings.TrimLeft(digits, CountryCode)
	}

	if len(digits) <= len(CountryCode) {
		return "", apperr.Validation("Phone number has no subscriber digits.").WithOp("phone.Normalize")
	}
	return "+" + digits, nil
}

// Equal compares two phone strings by their digits only.
func Equal(a, b string) bool {
	return Clean(a) == Clean(b)
}

// Display renders a canonical phone in international format for replies,
// falling back to the input when libphonenumber cannot parse it.
func Display(canonical string) string {
	num, err := phonenumbers.Parse(canonical, displayRegion)
	if err != nil {
		return canonical
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}

// Plausible reports whether libphonenumber considers the canonical number
// valid. Implausible numbers are still accepted; callers only log them.
func Plausible(canonical string) bool {
	num, err := phonenumbers.Parse(canonical, displayRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

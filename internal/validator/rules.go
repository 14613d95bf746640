package validator

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	// RgxEmail is based on the HTML5 spec's email pattern.
	RgxEmail = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+\\/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

	// RgxPhoneNumber matches a 10-digit local mobile number.
	RgxPhoneNumber = regexp.MustCompile(`^[6-9][0-9]{9}$`)

	// RgxCountryCode matches dialling codes like +91.
	RgxCountryCode = regexp.MustCompile(`^\+[0-9]{1,3}$`)

	// RgxPrimaryID matches a 12-digit national identity number.
	RgxPrimaryID = regexp.MustCompile(`^[0-9]{12}$`)

	// RgxSecondaryID matches the 5-letter + 4-digit + 1-letter tax identifier format.
	RgxSecondaryID = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

	// RgxPin matches a 6-digit login PIN.
	RgxPin = regexp.MustCompile(`^[0-9]{6}$`)

	// RgxOtp matches a 6-digit one-time code.
	RgxOtp = regexp.MustCompile(`^[0-9]{6}$`)
)

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

func MinRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) >= n
}

func MaxRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}

func Between[T int | float64 | string](value, min, max T) bool {
	return value >= min && value <= max
}

func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

func In[T comparable](value T, safelist ...T) bool {
	return slices.Contains(safelist, value)
}

func NotIn[T comparable](value T, blocklist ...T) bool {
	return !slices.Contains(blocklist, value)
}

func IsEmail(value string) bool {
	if len(value) > 254 {
		return false
	}

	return RgxEmail.MatchString(value)
}

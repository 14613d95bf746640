package identity

import (
	"strings"
)

// MaskPrimaryID renders a 12-digit identifier as XXXX-XXXX-1234. Display
// code receives only the stored last-four fragment, never the full value.
func MaskPrimaryID(lastFour string) string {
	return "XXXX-XXXX-" + lastFour
}

// MaskSecondaryID renders a 10-character identifier as XXXXXX234F.
func MaskSecondaryID(lastFour string) string {
	return strings.Repeat("X", 6) + lastFour
}

// LastFour returns the display fragment of a raw identifier.
func LastFour(raw string) string {
	if len(raw) < 4 {
		return raw
	}
	return raw[len(raw)-4:]
}

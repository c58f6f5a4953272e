package verify

import "strings"

// maskVisibleSuffix is how many trailing characters of a national ID stay
// readable in masked views.
const maskVisibleSuffix = 3

// MaskNationalID redacts a national identity number down to its trailing
// fragment. Values at or below the fragment length are masked entirely;
// better to over-redact a short value than leak most of it.
func MaskNationalID(id string) string {
	runes := []rune(id)
	if len(runes) == 0 {
		return ""
	}
	if len(runes) <= maskVisibleSuffix {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-maskVisibleSuffix) + string(runes[len(runes)-maskVisibleSuffix:])
}

package invoice

import (
	"regexp"
	"strings"
)

// gstinPattern is the 15-character GSTIN structure: 2-digit state code,
// 5-letter + 4-digit + 1-letter PAN block, entity code, literal Z, checksum.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// IsValidGSTIN reports whether the value is a structurally valid GSTIN after
// trimming and uppercasing. Nil input is invalid. Structural only; no
// registry lookup.
func IsValidGSTIN(value *string) bool {
	if value == nil {
		return false
	}
	return gstinPattern.MatchString(strings.ToUpper(strings.TrimSpace(*value)))
}

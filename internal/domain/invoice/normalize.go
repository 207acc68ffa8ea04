package invoice

import "strings"

// NormalizeVendorName canonicalizes a vendor name for comparison: lowercase,
// trimmed, internal whitespace runs collapsed to a single space. Nil or blank
// input yields nil. Idempotent.
func NormalizeVendorName(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := strings.Join(strings.Fields(strings.ToLower(*value)), " ")
	if normalized == "" {
		return nil
	}
	return &normalized
}

// NormalizeInvoiceNumber canonicalizes an invoice number for comparison:
// uppercase, all whitespace stripped, then restricted to A-Z, 0-9, hyphen and
// slash. Nil input or nothing surviving the filter yields nil.
func NormalizeInvoiceNumber(value *string) *string {
	if value == nil {
		return nil
	}
	upper := strings.ToUpper(*value)
	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '/':
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if normalized == "" {
		return nil
	}
	return &normalized
}

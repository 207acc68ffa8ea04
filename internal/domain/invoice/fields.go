package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedFields holds what the document-intelligence service read off the
// invoice. Every field is optional; absence is data, not an error.
type ExtractedFields struct {
	VendorName    *string          `json:"vendor_name,omitempty"`
	GSTIN         *string          `json:"gstin,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	InvoiceDate   *time.Time       `json:"invoice_date,omitempty"`
	TotalAmount   *decimal.Decimal `json:"total_amount,omitempty"`
	TotalTax      *decimal.Decimal `json:"total_tax,omitempty"`
	Currency      *string          `json:"currency,omitempty"`
}

// Merge overlays non-nil override fields on top of the receiver, returning a
// new snapshot. Used by manual correction; the stored fields are never
// mutated.
func (f ExtractedFields) Merge(override ExtractedFields) ExtractedFields {
	merged := f
	if override.VendorName != nil {
		merged.VendorName = override.VendorName
	}
	if override.GSTIN != nil {
		merged.GSTIN = override.GSTIN
	}
	if override.InvoiceNumber != nil {
		merged.InvoiceNumber = override.InvoiceNumber
	}
	if override.InvoiceDate != nil {
		merged.InvoiceDate = override.InvoiceDate
	}
	if override.TotalAmount != nil {
		merged.TotalAmount = override.TotalAmount
	}
	if override.TotalTax != nil {
		merged.TotalTax = override.TotalTax
	}
	if override.Currency != nil {
		merged.Currency = override.Currency
	}
	return merged
}

// FieldConfidence carries the extractor's per-field confidence in [0,1].
type FieldConfidence struct {
	VendorName    *float64 `json:"vendor_name,omitempty"`
	GSTIN         *float64 `json:"gstin,omitempty"`
	InvoiceNumber *float64 `json:"invoice_number,omitempty"`
	InvoiceDate   *float64 `json:"invoice_date,omitempty"`
	TotalAmount   *float64 `json:"total_amount,omitempty"`
	TotalTax      *float64 `json:"total_tax,omitempty"`
	Currency      *float64 `json:"currency,omitempty"`
}

// NormalizedKey is the vendor-scoped comparison key derived from the
// extracted fields. It is never displayed, only compared.
type NormalizedKey struct {
	VendorName    *string `json:"vendor_name,omitempty"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
}

// NormalizeFields derives the comparison key from the extracted fields. Pure
// and deterministic: the same fields always yield the same key.
func NormalizeFields(f ExtractedFields) NormalizedKey {
	return NormalizedKey{
		VendorName:    NormalizeVendorName(f.VendorName),
		InvoiceNumber: NormalizeInvoiceNumber(f.InvoiceNumber),
	}
}

package rest

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
)

// OverrideRequest carries manual field corrections. Only the fields present
// in the body replace the stored extraction; absent fields are untouched.
type OverrideRequest struct {
	Extracted OverrideFields `json:"extracted" validate:"required"`
}

// OverrideFields mirrors the extracted-field shape with every field optional.
type OverrideFields struct {
	VendorName    *string          `json:"vendorName" validate:"omitempty,min=1,max=256"`
	GSTIN         *string          `json:"gstin" validate:"omitempty,max=32"`
	InvoiceNumber *string          `json:"invoiceNumber" validate:"omitempty,min=1,max=64"`
	InvoiceDate   *string          `json:"invoiceDate" validate:"omitempty,datetime=2006-01-02"`
	TotalAmount   *decimal.Decimal `json:"totalAmount"`
	TotalTax      *decimal.Decimal `json:"totalTax"`
	Currency      *string          `json:"currency" validate:"omitempty,len=3"`
}

// ToDomain converts the request fields to the domain shape. The date format
// is validated before this runs.
func (f OverrideFields) ToDomain() invoice.ExtractedFields {
	fields := invoice.ExtractedFields{
		VendorName:    f.VendorName,
		GSTIN:         f.GSTIN,
		InvoiceNumber: f.InvoiceNumber,
		TotalAmount:   f.TotalAmount,
		TotalTax:      f.TotalTax,
		Currency:      f.Currency,
	}
	if f.InvoiceDate != nil {
		if t, err := time.Parse("2006-01-02", *f.InvoiceDate); err == nil {
			fields.InvoiceDate = &t
		}
	}
	return fields
}

// InvoiceResponse is the invoice record plus the URL the stored file is
// served from.
type InvoiceResponse struct {
	*invoice.Invoice
	FileURL string `json:"file_url"`
}

func toInvoiceResponse(r *http.Request, inv *invoice.Invoice) InvoiceResponse {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return InvoiceResponse{
		Invoice: inv,
		FileURL: scheme + "://" + r.Host + "/uploads/" + filepath.Base(inv.FilePath),
	}
}

func toInvoiceResponses(r *http.Request, invoices []*invoice.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(r, inv))
	}
	return out
}

type invoiceEnvelope struct {
	Invoice InvoiceResponse `json:"invoice"`
}

type invoiceListEnvelope struct {
	Invoices []InvoiceResponse `json:"invoices"`
}

type deleteEnvelope struct {
	Deleted int64 `json:"deleted"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type healthEnvelope struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

package explanation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
)

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func TestTemplate_FullFields(t *testing.T) {
	fields := invoice.ExtractedFields{
		VendorName:    strPtr("Acme Co"),
		InvoiceNumber: strPtr("INV-42"),
		TotalAmount:   decPtr(decimal.NewFromFloat(1250.5)),
		Currency:      strPtr("INR"),
	}
	signals := []invoice.Signal{
		invoice.NewSignal(invoice.CodeDuplicateExact, invoice.SeverityHigh, "Exact duplicate invoice detected."),
		invoice.NewSignal(invoice.CodeGSTINMissing, invoice.SeverityMedium, "GSTIN is missing for the vendor."),
	}
	risk := invoice.RiskVerdict{Level: invoice.RiskHigh, Score: 55, Action: invoice.ActionBlock}

	got := Template(fields, signals, risk)
	assert.Equal(t,
		"Acme Co invoice INV-42 for 1250.50 INR was scored HIGH. "+
			"Exact duplicate invoice detected. GSTIN is missing for the vendor. "+
			"Recommended action: BLOCK.",
		got)
}

func TestTemplate_MissingFieldsAndNoSignals(t *testing.T) {
	got := Template(invoice.ExtractedFields{}, nil, invoice.EmptyVerdict())
	assert.Equal(t,
		"Unknown vendor invoice Unknown invoice for Unknown amount was scored LOW. "+
			"No significant issues were detected. Recommended action: PROCEED.",
		got)
}

func TestTemplate_CapsReasonsAtThree(t *testing.T) {
	signals := []invoice.Signal{
		invoice.NewSignal(invoice.CodeMissingInvoiceNumber, invoice.SeverityMedium, "One."),
		invoice.NewSignal(invoice.CodeMissingInvoiceDate, invoice.SeverityMedium, "Two."),
		invoice.NewSignal(invoice.CodeMissingVendorName, invoice.SeverityMedium, "Three."),
		invoice.NewSignal(invoice.CodeGSTINMissing, invoice.SeverityMedium, "Four."),
	}
	got := Template(invoice.ExtractedFields{}, signals, invoice.EmptyVerdict())
	assert.Contains(t, got, "One. Two. Three. Recommended action:")
	assert.NotContains(t, got, "Four.")
}

func TestGenerate_UnconfiguredUsesTemplate(t *testing.T) {
	gen := NewGenerator(Config{}, zap.NewNop())
	got := gen.Generate(context.Background(), invoice.ExtractedFields{}, nil, invoice.EmptyVerdict())
	assert.Contains(t, got, "Unknown vendor invoice")
}

func TestGenerate_ChatBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/audit/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-15-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		w.Write([]byte(`{"choices":[{"message":{"content":"  Looks risky because of a duplicate.  "}}]}`))
	}))
	defer srv.Close()

	gen := NewGenerator(Config{Endpoint: srv.URL, APIKey: "secret", Deployment: "audit"}, zap.NewNop())
	got := gen.Generate(context.Background(), invoice.ExtractedFields{}, nil, invoice.EmptyVerdict())
	assert.Equal(t, "Looks risky because of a duplicate.", got)
}

func TestGenerate_ChatFailureFallsBackToTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fields := invoice.ExtractedFields{VendorName: strPtr("Acme Co")}
	gen := NewGenerator(Config{Endpoint: srv.URL, APIKey: "secret", Deployment: "audit"}, zap.NewNop())
	got := gen.Generate(context.Background(), fields, nil, invoice.EmptyVerdict())
	assert.Contains(t, got, "Acme Co invoice Unknown invoice")
}

func TestGenerate_EmptyChoicesFallsBackToTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	gen := NewGenerator(Config{Endpoint: srv.URL, APIKey: "secret", Deployment: "audit"}, zap.NewNop())
	got := gen.Generate(context.Background(), invoice.ExtractedFields{}, nil, invoice.EmptyVerdict())
	require.Contains(t, got, "Recommended action: PROCEED.")
	assert.Contains(t, got, "Unknown vendor")
}

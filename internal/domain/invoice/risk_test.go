package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected RiskLevel
		wantErr  bool
	}{
		{input: "HIGH", expected: RiskHigh},
		{input: "low", expected: RiskLow},
		{input: " medium ", expected: RiskMedium},
		{input: "MED", expected: RiskMedium},
		{input: "critical", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRiskLevel(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, got)
	}
}

func TestActionForLevel(t *testing.T) {
	assert.Equal(t, ActionBlock, ActionForLevel(RiskHigh))
	assert.Equal(t, ActionHold, ActionForLevel(RiskMedium))
	assert.Equal(t, ActionProceed, ActionForLevel(RiskLow))
}

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 3, SeverityHigh.Rank())
	assert.Equal(t, 2, SeverityMedium.Rank())
	assert.Equal(t, 1, SeverityLow.Rank())
	assert.Equal(t, 0, SeverityInfo.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
}

func TestExtractedFieldsMerge(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(1000)
	base := ExtractedFields{
		VendorName:  strPtr("Acme Co"),
		InvoiceDate: &date,
		TotalAmount: &amount,
	}

	newAmount := decimal.NewFromInt(1200)
	merged := base.Merge(ExtractedFields{
		InvoiceNumber: strPtr("INV-9"),
		TotalAmount:   &newAmount,
	})

	require.NotNil(t, merged.VendorName)
	assert.Equal(t, "Acme Co", *merged.VendorName)
	require.NotNil(t, merged.InvoiceNumber)
	assert.Equal(t, "INV-9", *merged.InvoiceNumber)
	assert.True(t, merged.TotalAmount.Equal(newAmount))
	// base snapshot untouched
	assert.True(t, base.TotalAmount.Equal(amount))
	assert.Nil(t, base.InvoiceNumber)
}

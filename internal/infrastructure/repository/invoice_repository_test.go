package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/invoicing"
)

func TestBuildListQuery_NoFilter(t *testing.T) {
	query, args := buildListQuery(invoicing.ListFilter{})
	assert.Contains(t, query, "WHERE NOT deleted")
	assert.Contains(t, query, "ORDER BY uploaded_at DESC")
	assert.NotContains(t, query, "risk_level")
	assert.NotContains(t, query, "ILIKE")
	assert.Empty(t, args)
}

func TestBuildListQuery_RiskFilter(t *testing.T) {
	query, args := buildListQuery(invoicing.ListFilter{
		RiskLevels: []invoice.RiskLevel{invoice.RiskHigh, invoice.RiskMedium},
	})
	assert.Contains(t, query, "risk_level = ANY($1)")
	require.Len(t, args, 1)
	assert.Equal(t, []string{"HIGH", "MEDIUM"}, args[0])
}

func TestBuildListQuery_SearchFilter(t *testing.T) {
	query, args := buildListQuery(invoicing.ListFilter{Search: "acme"})
	assert.Contains(t, query, "extracted->>'vendor_name' ILIKE $1")
	assert.Contains(t, query, "extracted->>'invoice_number' ILIKE $1")
	require.Len(t, args, 1)
	assert.Equal(t, "%acme%", args[0])
}

func TestBuildListQuery_RiskAndSearchPlaceholders(t *testing.T) {
	query, args := buildListQuery(invoicing.ListFilter{
		RiskLevels: []invoice.RiskLevel{invoice.RiskHigh},
		Search:     "INV-1",
	})
	require.Len(t, args, 2)
	assert.Contains(t, query, "ANY($1)")
	assert.Contains(t, query, "ILIKE $2")
	assert.True(t, strings.Index(query, "ANY($1)") < strings.Index(query, "ILIKE $2"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `INV\_1`, escapeLike("INV_1"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

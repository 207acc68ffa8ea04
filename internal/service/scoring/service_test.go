package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/anomaly"
)

type mockHistoryStore struct {
	mock.Mock
}

func (m *mockHistoryStore) FindDuplicateExact(ctx context.Context, normVendor, normInvoiceNumber string, excludeID uuid.UUID) (*HistoryRecord, error) {
	args := m.Called(ctx, normVendor, normInvoiceNumber, excludeID)
	if rec := args.Get(0); rec != nil {
		return rec.(*HistoryRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHistoryStore) FindNearby(ctx context.Context, normVendor string, from, to time.Time, excludeID uuid.UUID) ([]HistoryRecord, error) {
	args := m.Called(ctx, normVendor, from, to, excludeID)
	if recs := args.Get(0); recs != nil {
		return recs.([]HistoryRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHistoryStore) FindAmountsForVendor(ctx context.Context, normVendor string, excludeID uuid.UUID) ([]float64, error) {
	args := m.Called(ctx, normVendor, excludeID)
	if amounts := args.Get(0); amounts != nil {
		return amounts.([]float64), args.Error(1)
	}
	return nil, args.Error(1)
}

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func codes(signals []invoice.Signal) []invoice.SignalCode {
	out := make([]invoice.SignalCode, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Code)
	}
	return out
}

func findSignal(t *testing.T, signals []invoice.Signal, code invoice.SignalCode) invoice.Signal {
	t.Helper()
	for _, s := range signals {
		if s.Code == code {
			return s
		}
	}
	t.Fatalf("signal %s not found in %v", code, codes(signals))
	return invoice.Signal{}
}

func newTestService(history *mockHistoryStore) *Service {
	return NewService(history, anomaly.NewScorer(anomaly.Config{}, zap.NewNop()), zap.NewNop())
}

func TestComputeSignals_AllFieldsMissing(t *testing.T) {
	history := new(mockHistoryStore)
	svc := newTestService(history)

	signals, normalized, err := svc.ComputeSignals(context.Background(), invoice.ExtractedFields{}, uuid.Nil)
	require.NoError(t, err)

	// No vendor, so no GSTIN check and no history access at all.
	assert.Equal(t, []invoice.SignalCode{
		invoice.CodeMissingInvoiceNumber,
		invoice.CodeMissingInvoiceDate,
		invoice.CodeMissingVendorName,
	}, codes(signals))
	assert.Nil(t, normalized.VendorName)
	assert.Nil(t, normalized.InvoiceNumber)
	history.AssertExpectations(t)
}

func TestComputeSignals_InvalidGSTIN(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).Return([]float64{}, nil)
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:    strPtr("Acme Co"),
		GSTIN:         strPtr("INVALIDGSTIN123"),
		InvoiceNumber: strPtr("INV-1"),
		InvoiceDate:   nil,
		TotalAmount:   decPtr(decimal.NewFromInt(100)),
	}
	history.On("FindDuplicateExact", mock.Anything, "acme co", "INV-1", uuid.Nil).Return(nil, nil)

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)

	gstin := findSignal(t, signals, invoice.CodeGSTINInvalid)
	assert.Equal(t, invoice.SeverityHigh, gstin.Severity)
	assert.Equal(t, "INVALIDGSTIN123", gstin.Evidence.GSTIN)
}

func TestComputeSignals_GSTINMissingForVendor(t *testing.T) {
	history := new(mockHistoryStore)
	svc := newTestService(history)

	signals, _, err := svc.ComputeSignals(context.Background(), invoice.ExtractedFields{
		VendorName: strPtr("Acme Co"),
	}, uuid.Nil)
	require.NoError(t, err)

	missing := findSignal(t, signals, invoice.CodeGSTINMissing)
	assert.Equal(t, invoice.SeverityMedium, missing.Severity)
}

func TestComputeSignals_ExactDuplicate(t *testing.T) {
	history := new(mockHistoryStore)
	dupID := uuid.New()
	history.On("FindDuplicateExact", mock.Anything, "acme co", "INV-1", uuid.Nil).
		Return(&HistoryRecord{ID: dupID}, nil)
	history.On("FindNearby", mock.Anything, "acme co", mock.Anything, mock.Anything, uuid.Nil).
		Return([]HistoryRecord{}, nil)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).
		Return([]float64{100, 100}, nil)
	svc := newTestService(history)

	// Any casing/spacing of the same key pair matches.
	fields := invoice.ExtractedFields{
		VendorName:    strPtr("  ACME   co "),
		GSTIN:         strPtr("27AAPFU0939F1ZV"),
		InvoiceNumber: strPtr("inv-1"),
		InvoiceDate:   datePtr(2024, time.March, 4),
		TotalAmount:   decPtr(decimal.NewFromInt(100)),
	}

	signals, normalized, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)

	require.NotNil(t, normalized.VendorName)
	assert.Equal(t, "acme co", *normalized.VendorName)
	require.NotNil(t, normalized.InvoiceNumber)
	assert.Equal(t, "INV-1", *normalized.InvoiceNumber)

	dup := findSignal(t, signals, invoice.CodeDuplicateExact)
	assert.Equal(t, invoice.SeverityHigh, dup.Severity)
	require.NotNil(t, dup.Evidence.DuplicateID)
	assert.Equal(t, dupID, *dup.Evidence.DuplicateID)
}

func TestComputeSignals_NearDuplicateWithinTolerance(t *testing.T) {
	history := new(mockHistoryStore)
	similarID := uuid.New()
	history.On("FindDuplicateExact", mock.Anything, "acme co", "INV-2", uuid.Nil).Return(nil, nil)
	// 2024-01-10 amount 1000 sits in the +/-7d window of 2024-01-15; 1.5%
	// difference is inside the 2% tolerance.
	history.On("FindNearby", mock.Anything, "acme co",
		time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 22, 0, 0, 0, 0, time.UTC),
		uuid.Nil).
		Return([]HistoryRecord{
			{ID: uuid.New(), InvoiceDate: datePtr(2024, time.January, 9), TotalAmount: nil},
			{ID: similarID, InvoiceDate: datePtr(2024, time.January, 10), TotalAmount: decPtr(decimal.NewFromInt(1000))},
		}, nil)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).Return([]float64{}, nil)
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:    strPtr("Acme Co"),
		GSTIN:         strPtr("27AAPFU0939F1ZV"),
		InvoiceNumber: strPtr("INV-2"),
		InvoiceDate:   datePtr(2024, time.January, 15),
		TotalAmount:   decPtr(decimal.NewFromInt(1015)),
	}

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)

	near := findSignal(t, signals, invoice.CodeDuplicateNear)
	assert.Equal(t, invoice.SeverityMedium, near.Severity)
	require.NotNil(t, near.Evidence.SimilarInvoiceID)
	assert.Equal(t, similarID, *near.Evidence.SimilarInvoiceID)
}

func TestComputeSignals_NearDuplicateOutsideTolerance(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindDuplicateExact", mock.Anything, "acme co", "INV-2", uuid.Nil).Return(nil, nil)
	history.On("FindNearby", mock.Anything, "acme co", mock.Anything, mock.Anything, uuid.Nil).
		Return([]HistoryRecord{
			{ID: uuid.New(), TotalAmount: decPtr(decimal.NewFromInt(1100))},
		}, nil)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).Return([]float64{}, nil)
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:    strPtr("Acme Co"),
		GSTIN:         strPtr("27AAPFU0939F1ZV"),
		InvoiceNumber: strPtr("INV-2"),
		InvoiceDate:   datePtr(2024, time.January, 15),
		TotalAmount:   decPtr(decimal.NewFromInt(1000)),
	}

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)
	for _, s := range signals {
		assert.NotEqual(t, invoice.CodeDuplicateNear, s.Code)
	}
}

func TestComputeSignals_NotEnoughHistory(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).
		Return([]float64{100, 105}, nil)
	svc := newTestService(history)

	// Only vendor+amount: no invoice number or date, so duplicate checks are
	// skipped entirely.
	fields := invoice.ExtractedFields{
		VendorName:  strPtr("Acme Co"),
		GSTIN:       strPtr("27AAPFU0939F1ZV"),
		TotalAmount: decPtr(decimal.NewFromInt(100)),
	}

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)

	info := findSignal(t, signals, invoice.CodeNotEnoughHistory)
	assert.Equal(t, invoice.SeverityInfo, info.Severity)
	require.NotNil(t, info.Evidence.HistoryCount)
	assert.Equal(t, 2, *info.Evidence.HistoryCount)

	for _, s := range signals {
		assert.NotEqual(t, invoice.CodeAmountAnomaly, s.Code, "no scoring on tiny samples")
	}
	history.AssertExpectations(t)
}

func TestComputeSignals_HighAmountAnomaly(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).
		Return([]float64{100, 100, 105, 95, 100}, nil)
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:  strPtr("Acme Co"),
		GSTIN:       strPtr("27AAPFU0939F1ZV"),
		TotalAmount: decPtr(decimal.NewFromInt(500)),
	}

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)

	sig := findSignal(t, signals, invoice.CodeAmountAnomaly)
	assert.Equal(t, invoice.SeverityHigh, sig.Severity)
	require.NotNil(t, sig.Evidence.ZScore)
	assert.InDelta(t, 126.49, *sig.Evidence.ZScore, 0.01)
	require.NotNil(t, sig.Evidence.Mean)
	assert.InDelta(t, 100, *sig.Evidence.Mean, 1e-9)
	require.NotNil(t, sig.Evidence.Std)
	assert.InDelta(t, 3.1623, *sig.Evidence.Std, 1e-3)
	assert.Equal(t, "local", sig.Evidence.Source)
}

func TestComputeSignals_TypicalAmountEmitsNoAnomalySignal(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).
		Return([]float64{100, 100, 105, 95, 100}, nil)
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:  strPtr("Acme Co"),
		GSTIN:       strPtr("27AAPFU0939F1ZV"),
		TotalAmount: decPtr(decimal.NewFromInt(101)),
	}

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)
	for _, s := range signals {
		assert.NotEqual(t, invoice.CodeAmountAnomaly, s.Code)
	}
}

func TestComputeSignals_ExcludeIDPassedThrough(t *testing.T) {
	history := new(mockHistoryStore)
	excludeID := uuid.New()
	history.On("FindDuplicateExact", mock.Anything, "acme co", "INV-1", excludeID).Return(nil, nil)
	history.On("FindNearby", mock.Anything, "acme co", mock.Anything, mock.Anything, excludeID).
		Return([]HistoryRecord{}, nil)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", excludeID).
		Return([]float64{}, nil)
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:    strPtr("Acme Co"),
		GSTIN:         strPtr("27AAPFU0939F1ZV"),
		InvoiceNumber: strPtr("INV-1"),
		InvoiceDate:   datePtr(2024, time.June, 1),
		TotalAmount:   decPtr(decimal.NewFromInt(250)),
	}

	_, _, err := svc.ComputeSignals(context.Background(), fields, excludeID)
	require.NoError(t, err)
	history.AssertExpectations(t)
}

func TestComputeSignals_HistoryFailureIsHardError(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindDuplicateExact", mock.Anything, "acme co", "INV-1", uuid.Nil).
		Return(nil, errors.New("connection reset"))
	svc := newTestService(history)

	fields := invoice.ExtractedFields{
		VendorName:    strPtr("Acme Co"),
		GSTIN:         strPtr("27AAPFU0939F1ZV"),
		InvoiceNumber: strPtr("INV-1"),
	}

	_, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exact duplicate lookup")
}

type stubScorer struct {
	result anomaly.Result
}

func (s stubScorer) Score(_ context.Context, _ float64, _ anomaly.HistorySummary, _ string) anomaly.Result {
	return s.result
}

func TestComputeSignals_MediumAnomalyCarriesSource(t *testing.T) {
	history := new(mockHistoryStore)
	history.On("FindAmountsForVendor", mock.Anything, "acme co", uuid.Nil).
		Return([]float64{100, 100, 100}, nil)

	svc := NewService(history, stubScorer{result: anomaly.Result{
		ZScore:   2.4,
		Severity: anomaly.SeverityMedium,
		Source:   anomaly.SourceExternal,
	}}, zap.NewNop())

	fields := invoice.ExtractedFields{
		VendorName:  strPtr("Acme Co"),
		GSTIN:       strPtr("27AAPFU0939F1ZV"),
		TotalAmount: decPtr(decimal.NewFromInt(130)),
	}

	signals, _, err := svc.ComputeSignals(context.Background(), fields, uuid.Nil)
	require.NoError(t, err)

	sig := findSignal(t, signals, invoice.CodeAmountAnomaly)
	assert.Equal(t, invoice.SeverityMedium, sig.Severity)
	assert.Equal(t, "Invoice amount is above typical vendor range.", sig.Reason)
	assert.Equal(t, "external", sig.Evidence.Source)
}

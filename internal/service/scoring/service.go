package scoring

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/metrics"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/anomaly"
)

const (
	// nearDuplicateWindowDays bounds the calendar-day window on each side of
	// the invoice date for the near-duplicate check.
	nearDuplicateWindowDays = 7
	// minHistoryForScoring is the smallest vendor sample the anomaly check
	// will score; below it statistics are too unstable to trust.
	minHistoryForScoring = 3
)

// nearDuplicateTolerance is the relative amount tolerance (2%).
var nearDuplicateTolerance = decimal.NewFromFloat(0.02)

// Service is the signal computation engine. It holds no per-invoice state;
// each ComputeSignals call is independent and request-scoped.
type Service struct {
	history HistoryStore
	scorer  AnomalyScorer
	logger  *zap.Logger
}

// NewService wires the engine to its history store and anomaly scorer.
func NewService(history HistoryStore, scorer AnomalyScorer, logger *zap.Logger) *Service {
	return &Service{
		history: history,
		scorer:  scorer,
		logger:  logger,
	}
}

// ComputeSignals runs every check against the vendor's history and returns
// the full signal list in check order plus the normalized comparison key.
// excludeID (uuid.Nil for none) lets re-scoring after a manual correction
// ignore the invoice's own stored record. Absent fields never fail a check;
// only history query errors propagate.
func (s *Service) ComputeSignals(ctx context.Context, fields invoice.ExtractedFields, excludeID uuid.UUID) ([]invoice.Signal, invoice.NormalizedKey, error) {
	signals := []invoice.Signal{}
	normalized := invoice.NormalizeFields(fields)

	if fields.InvoiceNumber == nil {
		signals = append(signals, invoice.NewSignal(invoice.CodeMissingInvoiceNumber, invoice.SeverityMedium, "Invoice number is missing."))
	}
	if fields.InvoiceDate == nil {
		signals = append(signals, invoice.NewSignal(invoice.CodeMissingInvoiceDate, invoice.SeverityMedium, "Invoice date is missing."))
	}
	if fields.VendorName == nil {
		signals = append(signals, invoice.NewSignal(invoice.CodeMissingVendorName, invoice.SeverityMedium, "Vendor name is missing."))
	}

	if fields.VendorName != nil {
		if fields.GSTIN != nil {
			if !invoice.IsValidGSTIN(fields.GSTIN) {
				sig := invoice.NewSignal(invoice.CodeGSTINInvalid, invoice.SeverityHigh, "GSTIN format is invalid.")
				sig.Evidence.GSTIN = *fields.GSTIN
				signals = append(signals, sig)
			}
		} else {
			signals = append(signals, invoice.NewSignal(invoice.CodeGSTINMissing, invoice.SeverityMedium, "GSTIN is missing for the vendor."))
		}
	}

	dupSignal, err := s.checkExactDuplicate(ctx, normalized, excludeID)
	if err != nil {
		return nil, normalized, err
	}
	if dupSignal != nil {
		signals = append(signals, *dupSignal)
	}

	nearSignal, err := s.checkNearDuplicate(ctx, fields, normalized, excludeID)
	if err != nil {
		return nil, normalized, err
	}
	if nearSignal != nil {
		signals = append(signals, *nearSignal)
	}

	anomalySignal, err := s.checkAmountAnomaly(ctx, fields, normalized, excludeID)
	if err != nil {
		return nil, normalized, err
	}
	if anomalySignal != nil {
		signals = append(signals, *anomalySignal)
	}

	for _, sig := range signals {
		metrics.SignalsEmitted.WithLabelValues(string(sig.Code), string(sig.Severity)).Inc()
	}

	return signals, normalized, nil
}

func (s *Service) checkExactDuplicate(ctx context.Context, normalized invoice.NormalizedKey, excludeID uuid.UUID) (*invoice.Signal, error) {
	if normalized.VendorName == nil || normalized.InvoiceNumber == nil {
		return nil, nil
	}

	match, err := s.history.FindDuplicateExact(ctx, *normalized.VendorName, *normalized.InvoiceNumber, excludeID)
	if err != nil {
		return nil, fmt.Errorf("exact duplicate lookup: %w", err)
	}
	if match == nil {
		return nil, nil
	}

	s.logger.Debug("exact duplicate detected",
		zap.String("vendor", *normalized.VendorName),
		zap.String("invoice_number", *normalized.InvoiceNumber),
		zap.String("duplicate_id", match.ID.String()))

	sig := invoice.NewSignal(invoice.CodeDuplicateExact, invoice.SeverityHigh, "Exact duplicate invoice detected.")
	dupID := match.ID
	sig.Evidence.DuplicateID = &dupID
	return &sig, nil
}

func (s *Service) checkNearDuplicate(ctx context.Context, fields invoice.ExtractedFields, normalized invoice.NormalizedKey, excludeID uuid.UUID) (*invoice.Signal, error) {
	if normalized.VendorName == nil || fields.InvoiceDate == nil || fields.TotalAmount == nil {
		return nil, nil
	}

	from := fields.InvoiceDate.AddDate(0, 0, -nearDuplicateWindowDays)
	to := fields.InvoiceDate.AddDate(0, 0, nearDuplicateWindowDays)

	nearby, err := s.history.FindNearby(ctx, *normalized.VendorName, from, to, excludeID)
	if err != nil {
		return nil, fmt.Errorf("near duplicate lookup: %w", err)
	}

	threshold := fields.TotalAmount.Mul(nearDuplicateTolerance)
	for _, record := range nearby {
		if record.TotalAmount == nil {
			continue
		}
		diff := fields.TotalAmount.Sub(*record.TotalAmount).Abs()
		if diff.LessThanOrEqual(threshold) {
			// First match wins; no ranking among multiple candidates.
			sig := invoice.NewSignal(invoice.CodeDuplicateNear, invoice.SeverityMedium, "Near-duplicate invoice detected.")
			similarID := record.ID
			sig.Evidence.SimilarInvoiceID = &similarID
			return &sig, nil
		}
	}
	return nil, nil
}

func (s *Service) checkAmountAnomaly(ctx context.Context, fields invoice.ExtractedFields, normalized invoice.NormalizedKey, excludeID uuid.UUID) (*invoice.Signal, error) {
	if normalized.VendorName == nil || fields.TotalAmount == nil {
		return nil, nil
	}

	amounts, err := s.history.FindAmountsForVendor(ctx, *normalized.VendorName, excludeID)
	if err != nil {
		return nil, fmt.Errorf("vendor amount history lookup: %w", err)
	}

	if len(amounts) < minHistoryForScoring {
		sig := invoice.NewSignal(invoice.CodeNotEnoughHistory, invoice.SeverityInfo, "Not enough vendor history for anomaly scoring.")
		count := len(amounts)
		sig.Evidence.HistoryCount = &count
		return &sig, nil
	}

	summary := anomaly.Summarize(amounts)
	amount, _ := fields.TotalAmount.Float64()
	result := s.scorer.Score(ctx, amount, summary, *normalized.VendorName)

	var sig invoice.Signal
	switch result.Severity {
	case anomaly.SeverityHigh:
		sig = invoice.NewSignal(invoice.CodeAmountAnomaly, invoice.SeverityHigh, "Invoice amount is a high anomaly for this vendor.")
	case anomaly.SeverityMedium:
		sig = invoice.NewSignal(invoice.CodeAmountAnomaly, invoice.SeverityMedium, "Invoice amount is above typical vendor range.")
	default:
		return nil, nil
	}

	z, mean, std := result.ZScore, summary.Mean, summary.Std
	sig.Evidence.ZScore = &z
	sig.Evidence.Mean = &mean
	sig.Evidence.Std = &std
	sig.Evidence.Source = string(result.Source)
	return &sig, nil
}

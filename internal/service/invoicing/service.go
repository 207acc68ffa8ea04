package invoicing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/errors"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/storage"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/metrics"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/scoring"
)

// Upload is one file of a multipart upload request.
type Upload struct {
	FileName string
	MimeType string
	Content  io.Reader
}

// Service orchestrates the invoice lifecycle: store the file, extract fields,
// run the fraud checks, aggregate the verdict, generate the explanation,
// persist. Files in one batch are processed strictly in order and each record
// is persisted before the next file's duplicate checks run, so a batch cannot
// hide duplicates from itself.
type Service struct {
	repo      Repository
	store     FileStore
	extractor Extractor
	engine    SignalEngine
	explainer ExplanationGenerator
	logger    *zap.Logger
}

func NewService(repo Repository, store FileStore, extractor Extractor, engine SignalEngine, explainer ExplanationGenerator, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		extractor: extractor,
		engine:    engine,
		explainer: explainer,
		logger:    logger,
	}
}

// UploadInvoices ingests a batch of files. Extraction or scoring failure for
// one file marks that record FAILED and moves on; storage and persistence
// failures abort the request.
func (s *Service) UploadInvoices(ctx context.Context, uploads []Upload) ([]*invoice.Invoice, error) {
	if len(uploads) == 0 {
		return nil, apperrors.NewValidationError("NO_FILES", "No files uploaded.")
	}
	// Validate every file before the first one is stored; rejecting file N
	// after file 1 has been persisted would leave the batch half-applied and
	// a retry would ingest file 1 twice.
	for _, upload := range uploads {
		if !storage.IsAllowedType(upload.MimeType) {
			return nil, apperrors.NewValidationError("UNSUPPORTED_FILE_TYPE",
				"Unsupported file type. Only PDF/JPG/PNG are allowed.")
		}
	}

	saved := make([]*invoice.Invoice, 0, len(uploads))
	for _, upload := range uploads {
		path, err := s.store.Save(upload.FileName, upload.MimeType, upload.Content)
		if err != nil {
			return nil, err
		}

		inv := invoice.New(upload.FileName, path, upload.MimeType)
		if err := s.enrich(ctx, inv, uuid.Nil); err != nil {
			return nil, err
		}

		if err := s.repo.Create(ctx, inv); err != nil {
			return nil, apperrors.Wrap(err, "persist invoice")
		}

		s.logger.Info("invoice ingested",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("file_name", inv.FileName),
			zap.String("extraction_status", string(inv.ExtractionStatus)),
			zap.String("risk_level", string(inv.Risk.Level)))
		saved = append(saved, inv)
	}
	return saved, nil
}

// enrich runs extraction and scoring for the record. Per-invoice enrichment
// failures are recorded on the invoice, not returned; only history-store
// failures propagate.
func (s *Service) enrich(ctx context.Context, inv *invoice.Invoice, excludeID uuid.UUID) error {
	fields, confidence, err := s.extractor.Extract(ctx, inv.FilePath, inv.MimeType)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeExtraction) {
			return err
		}
		metrics.ExtractionsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("extraction failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("file_name", inv.FileName),
			zap.Error(err))
		inv.MarkExtractionFailed(err.Error())
		return nil
	}
	metrics.ExtractionsTotal.WithLabelValues("success").Inc()
	inv.Confidence = confidence

	return s.score(ctx, inv, fields, excludeID)
}

// score recomputes the signal/risk/explanation snapshot from the given fields
// and installs it on the record.
func (s *Service) score(ctx context.Context, inv *invoice.Invoice, fields invoice.ExtractedFields, excludeID uuid.UUID) error {
	start := time.Now()
	signals, normalized, err := s.engine.ComputeSignals(ctx, fields, excludeID)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return apperrors.Wrap(err, "compute signals")
	}

	risk := scoring.ComputeRisk(signals)
	metrics.VerdictsComputed.WithLabelValues(string(risk.Level)).Inc()

	explanation := s.explainer.Generate(ctx, fields, signals, risk)
	inv.ApplyScoring(fields, normalized, signals, risk, explanation)
	return nil
}

// List returns non-deleted invoices, newest upload first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*invoice.Invoice, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one live invoice by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// ParseRiskFilter turns the comma-separated query value into risk levels.
// "MED" is accepted as MEDIUM; unknown levels are a validation error.
func ParseRiskFilter(raw string) ([]invoice.RiskLevel, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	levels := make([]invoice.RiskLevel, 0, len(parts))
	for _, part := range parts {
		level, err := invoice.ParseRiskLevel(part)
		if err != nil {
			return nil, apperrors.NewValidationError("INVALID_RISK_LEVEL",
				fmt.Sprintf("unknown risk level %q", strings.TrimSpace(part)))
		}
		levels = append(levels, level)
	}
	return levels, nil
}

var csvHeader = []string{
	"id", "fileName", "vendorName", "invoiceNumber", "invoiceDate",
	"totalAmount", "currency", "riskLevel", "riskScore", "topReasons",
}

// ExportCSV streams the risk report for all matching invoices.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter ListFilter) error {
	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, inv := range invoices {
		if err := cw.Write(csvRow(inv)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(inv *invoice.Invoice) []string {
	var vendor, number, date, amount, currency string
	if inv.Extracted.VendorName != nil {
		vendor = *inv.Extracted.VendorName
	}
	if inv.Extracted.InvoiceNumber != nil {
		number = *inv.Extracted.InvoiceNumber
	}
	if inv.Extracted.InvoiceDate != nil {
		date = inv.Extracted.InvoiceDate.UTC().Format("2006-01-02")
	}
	if inv.Extracted.TotalAmount != nil {
		amount = inv.Extracted.TotalAmount.String()
	}
	if inv.Extracted.Currency != nil {
		currency = *inv.Extracted.Currency
	}
	return []string{
		inv.ID.String(),
		inv.FileName,
		vendor,
		number,
		date,
		amount,
		currency,
		string(inv.Risk.Level),
		strconv.Itoa(inv.Risk.Score),
		strings.Join(inv.Risk.TopReasons, " | "),
	}
}

// DeleteAll soft-deletes every live record and removes the stored files.
// A file that cannot be removed is logged and skipped; the record is still
// marked deleted.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	invoices, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return 0, err
	}
	for _, inv := range invoices {
		if err := s.store.Remove(inv.FilePath); err != nil {
			s.logger.Warn("remove stored file",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("file_path", inv.FilePath),
				zap.Error(err))
		}
	}
	return s.repo.SoftDeleteAll(ctx)
}

// Override merges manual field corrections over the stored extraction and
// recomputes the whole snapshot, excluding the invoice's own record from the
// duplicate and history checks.
func (s *Service) Override(ctx context.Context, id uuid.UUID, corrections invoice.ExtractedFields) (*invoice.Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := inv.Extracted.Merge(corrections)
	if err := s.score(ctx, inv, merged, inv.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, apperrors.Wrap(err, "persist override")
	}

	s.logger.Info("invoice overridden",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("risk_level", string(inv.Risk.Level)))
	return inv, nil
}

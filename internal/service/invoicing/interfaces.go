package invoicing

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
)

// ListFilter narrows listing and export to non-deleted records matching the
// given risk levels (all levels when empty) and the case-insensitive search
// term over vendor name and invoice number (no search when empty).
type ListFilter struct {
	RiskLevels []invoice.RiskLevel
	Search     string
}

// Repository persists invoice records. Reads are scoped to non-deleted
// records; GetByID returns errors.ErrInvoiceNotFound for missing or deleted
// IDs.
type Repository interface {
	Create(ctx context.Context, inv *invoice.Invoice) error
	Update(ctx context.Context, inv *invoice.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	// List returns matching records newest-upload first.
	List(ctx context.Context, filter ListFilter) ([]*invoice.Invoice, error)
	// SoftDeleteAll marks every live record deleted and returns how many.
	SoftDeleteAll(ctx context.Context) (int64, error)
}

// Extractor reads invoice fields off a stored document.
type Extractor interface {
	Extract(ctx context.Context, filePath, mimeType string) (invoice.ExtractedFields, invoice.FieldConfidence, error)
}

// SignalEngine runs the fraud checks. *scoring.Service satisfies it.
type SignalEngine interface {
	ComputeSignals(ctx context.Context, fields invoice.ExtractedFields, excludeID uuid.UUID) ([]invoice.Signal, invoice.NormalizedKey, error)
}

// ExplanationGenerator renders the stored explanation text. It never fails;
// backends degrade to a deterministic template.
type ExplanationGenerator interface {
	Generate(ctx context.Context, fields invoice.ExtractedFields, signals []invoice.Signal, risk invoice.RiskVerdict) string
}

// FileStore keeps the uploaded documents on disk.
type FileStore interface {
	Save(fileName, mimeType string, r io.Reader) (string, error)
	Remove(path string) error
}

package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/anomaly"
)

// HistoryRecord is the slice of a persisted invoice the engine compares
// against. All history queries are read-only and scoped to non-deleted
// records for one normalized vendor.
type HistoryRecord struct {
	ID          uuid.UUID
	InvoiceDate *time.Time
	TotalAmount *decimal.Decimal
}

// HistoryStore is the engine's only I/O dependency. It is injected, never
// ambient, so tests can swap in an in-memory double. Query failures are hard
// errors; the engine does not retry or mask them.
type HistoryStore interface {
	// FindDuplicateExact returns any other record sharing both normalized
	// keys, or nil when none exists.
	FindDuplicateExact(ctx context.Context, normVendor, normInvoiceNumber string, excludeID uuid.UUID) (*HistoryRecord, error)
	// FindNearby returns same-vendor records whose invoice date falls inside
	// [from, to].
	FindNearby(ctx context.Context, normVendor string, from, to time.Time, excludeID uuid.UUID) ([]HistoryRecord, error)
	// FindAmountsForVendor returns every numeric historical amount for the
	// vendor.
	FindAmountsForVendor(ctx context.Context, normVendor string, excludeID uuid.UUID) ([]float64, error)
}

// AnomalyScorer abstracts the amount scorer so tests can pin results.
// *anomaly.Scorer satisfies it.
type AnomalyScorer interface {
	Score(ctx context.Context, amount float64, summary anomaly.HistorySummary, vendorKey string) anomaly.Result
}

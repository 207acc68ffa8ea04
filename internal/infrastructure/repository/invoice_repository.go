package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	apperrors "github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/errors"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/invoicing"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/scoring"
)

// InvoiceRepository implements both the persistence interface and the history
// queries the scoring engine runs. Extracted fields, confidences, signals and
// the verdict are stored as JSONB; the normalized key, invoice date, amount
// and risk level are lifted into dedicated columns so the history and filter
// queries stay indexable.
type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `
	id, file_name, file_path, mime_type, uploaded_at,
	extracted, confidence, normalized_vendor_name, normalized_invoice_number,
	invoice_date, total_amount, signals, risk, risk_level, explanation,
	extraction_status, extraction_error, deleted, created_at, updated_at
`

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	extracted, confidence, signals, risk, err := marshalDocuments(inv)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20
		)
	`
	_, err = r.db.Exec(ctx, query,
		inv.ID, inv.FileName, inv.FilePath, inv.MimeType, inv.UploadedAt,
		extracted, confidence, inv.Normalized.VendorName, inv.Normalized.InvoiceNumber,
		inv.Extracted.InvoiceDate, inv.Extracted.TotalAmount, signals, risk, string(inv.Risk.Level), inv.Explanation,
		string(inv.ExtractionStatus), inv.ExtractionError, inv.Deleted, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	extracted, confidence, signals, risk, err := marshalDocuments(inv)
	if err != nil {
		return err
	}

	query := `
		UPDATE invoices SET
			extracted = $2,
			confidence = $3,
			normalized_vendor_name = $4,
			normalized_invoice_number = $5,
			invoice_date = $6,
			total_amount = $7,
			signals = $8,
			risk = $9,
			risk_level = $10,
			explanation = $11,
			extraction_status = $12,
			extraction_error = $13,
			updated_at = $14
		WHERE id = $1 AND NOT deleted
	`
	tag, err := r.db.Exec(ctx, query,
		inv.ID,
		extracted, confidence, inv.Normalized.VendorName, inv.Normalized.InvoiceNumber,
		inv.Extracted.InvoiceDate, inv.Extracted.TotalAmount, signals, risk, string(inv.Risk.Level), inv.Explanation,
		string(inv.ExtractionStatus), inv.ExtractionError, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrInvoiceNotFound
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND NOT deleted`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter invoicing.ListFilter) ([]*invoice.Invoice, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*invoice.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return invoices, nil
}

func buildListQuery(filter invoicing.ListFilter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + invoiceColumns + ` FROM invoices WHERE NOT deleted`)
	args := []interface{}{}

	if len(filter.RiskLevels) > 0 {
		levels := make([]string, len(filter.RiskLevels))
		for i, level := range filter.RiskLevels {
			levels[i] = string(level)
		}
		args = append(args, levels)
		fmt.Fprintf(&sb, " AND risk_level = ANY($%d)", len(args))
	}

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		fmt.Fprintf(&sb,
			" AND (extracted->>'vendor_name' ILIKE $%d OR extracted->>'invoice_number' ILIKE $%d)",
			len(args), len(args))
	}

	sb.WriteString(" ORDER BY uploaded_at DESC")
	return sb.String(), args
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func (r *InvoiceRepository) SoftDeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET deleted = TRUE, updated_at = $1 WHERE NOT deleted`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("soft delete invoices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindDuplicateExact returns any other live record with the same normalized
// vendor and invoice number.
func (r *InvoiceRepository) FindDuplicateExact(ctx context.Context, normVendor, normInvoiceNumber string, excludeID uuid.UUID) (*scoring.HistoryRecord, error) {
	query := `
		SELECT id, invoice_date, total_amount FROM invoices
		WHERE NOT deleted
		  AND normalized_vendor_name = $1
		  AND normalized_invoice_number = $2
		  AND id <> $3
		ORDER BY uploaded_at ASC
		LIMIT 1
	`
	var rec scoring.HistoryRecord
	err := r.db.QueryRow(ctx, query, normVendor, normInvoiceNumber, excludeID).
		Scan(&rec.ID, &rec.InvoiceDate, &rec.TotalAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query exact duplicate: %w", err)
	}
	return &rec, nil
}

// FindNearby returns same-vendor records dated inside [from, to], oldest
// first so the first tolerance match is deterministic.
func (r *InvoiceRepository) FindNearby(ctx context.Context, normVendor string, from, to time.Time, excludeID uuid.UUID) ([]scoring.HistoryRecord, error) {
	query := `
		SELECT id, invoice_date, total_amount FROM invoices
		WHERE NOT deleted
		  AND normalized_vendor_name = $1
		  AND invoice_date BETWEEN $2 AND $3
		  AND id <> $4
		ORDER BY invoice_date ASC, uploaded_at ASC
	`
	rows, err := r.db.Query(ctx, query, normVendor, from, to, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query nearby invoices: %w", err)
	}
	defer rows.Close()

	records := []scoring.HistoryRecord{}
	for rows.Next() {
		var rec scoring.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.InvoiceDate, &rec.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan nearby invoice: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearby invoices: %w", err)
	}
	return records, nil
}

// FindAmountsForVendor returns every live historical amount for the vendor.
func (r *InvoiceRepository) FindAmountsForVendor(ctx context.Context, normVendor string, excludeID uuid.UUID) ([]float64, error) {
	query := `
		SELECT total_amount FROM invoices
		WHERE NOT deleted
		  AND normalized_vendor_name = $1
		  AND total_amount IS NOT NULL
		  AND id <> $2
		ORDER BY uploaded_at ASC
	`
	rows, err := r.db.Query(ctx, query, normVendor, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query vendor amounts: %w", err)
	}
	defer rows.Close()

	amounts := []float64{}
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("scan vendor amount: %w", err)
		}
		amounts = append(amounts, amount.InexactFloat64())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor amounts: %w", err)
	}
	return amounts, nil
}

func marshalDocuments(inv *invoice.Invoice) (extracted, confidence, signals, risk []byte, err error) {
	if extracted, err = json.Marshal(inv.Extracted); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal extracted fields: %w", err)
	}
	if confidence, err = json.Marshal(inv.Confidence); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal confidence: %w", err)
	}
	if signals, err = json.Marshal(inv.Signals); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal signals: %w", err)
	}
	if risk, err = json.Marshal(inv.Risk); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal risk: %w", err)
	}
	return extracted, confidence, signals, risk, nil
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var (
		inv              invoice.Invoice
		extracted        []byte
		confidence       []byte
		signals          []byte
		risk             []byte
		invoiceDate      *time.Time
		totalAmount      *decimal.Decimal
		riskLevel        string
		extractionStatus string
	)

	err := row.Scan(
		&inv.ID, &inv.FileName, &inv.FilePath, &inv.MimeType, &inv.UploadedAt,
		&extracted, &confidence, &inv.Normalized.VendorName, &inv.Normalized.InvoiceNumber,
		&invoiceDate, &totalAmount, &signals, &risk, &riskLevel, &inv.Explanation,
		&extractionStatus, &inv.ExtractionError, &inv.Deleted, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(extracted, &inv.Extracted); err != nil {
		return nil, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	if err := json.Unmarshal(confidence, &inv.Confidence); err != nil {
		return nil, fmt.Errorf("unmarshal confidence: %w", err)
	}
	if err := json.Unmarshal(signals, &inv.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal(risk, &inv.Risk); err != nil {
		return nil, fmt.Errorf("unmarshal risk: %w", err)
	}
	inv.ExtractionStatus = invoice.ExtractionStatus(extractionStatus)

	return &inv, nil
}

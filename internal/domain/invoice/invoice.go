package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is the aggregate persisted per uploaded document. Extracted fields,
// signals and risk are immutable snapshots for a given computation pass; an
// override replaces the whole snapshot and never mutates it in place.
type Invoice struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	MimeType   string    `json:"mime_type,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`

	Extracted  ExtractedFields `json:"extracted"`
	Confidence FieldConfidence `json:"confidence"`
	Normalized NormalizedKey   `json:"normalized"`

	Signals     []Signal    `json:"signals"`
	Risk        RiskVerdict `json:"risk"`
	Explanation string      `json:"explanation,omitempty"`

	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ExtractionError  string           `json:"extraction_error,omitempty"`

	Deleted   bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractionStatus reports whether field extraction succeeded for the file.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "PENDING"
	ExtractionSuccess ExtractionStatus = "SUCCESS"
	ExtractionFailed  ExtractionStatus = "FAILED"
)

// New creates an invoice record for a stored upload, before extraction runs.
// Risk defaults to the empty-verdict so a failed extraction still persists a
// well-formed record.
func New(fileName, filePath, mimeType string) *Invoice {
	now := time.Now().UTC()
	return &Invoice{
		ID:               uuid.New(),
		FileName:         fileName,
		FilePath:         filePath,
		MimeType:         mimeType,
		UploadedAt:       now,
		Signals:          []Signal{},
		Risk:             EmptyVerdict(),
		ExtractionStatus: ExtractionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ApplyScoring installs a freshly computed snapshot on the record.
func (inv *Invoice) ApplyScoring(extracted ExtractedFields, normalized NormalizedKey, signals []Signal, risk RiskVerdict, explanation string) {
	inv.Extracted = extracted
	inv.Normalized = normalized
	inv.Signals = signals
	inv.Risk = risk
	inv.Explanation = explanation
	inv.ExtractionStatus = ExtractionSuccess
	inv.ExtractionError = ""
	inv.UpdatedAt = time.Now().UTC()
}

// MarkExtractionFailed records a per-invoice extraction failure. The record is
// still persisted with no signals and the default LOW verdict.
func (inv *Invoice) MarkExtractionFailed(reason string) {
	inv.ExtractionStatus = ExtractionFailed
	inv.ExtractionError = reason
	inv.Signals = []Signal{}
	inv.Risk = EmptyVerdict()
	inv.UpdatedAt = time.Now().UTC()
}

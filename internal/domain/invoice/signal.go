package invoice

import "github.com/google/uuid"

// Severity grades a single fraud signal. INFO never elevates the verdict.
type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rank orders severities for aggregation: HIGH=3, MEDIUM=2, LOW=1, INFO=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// SignalCode identifies the check that produced a signal.
type SignalCode string

const (
	CodeMissingInvoiceNumber SignalCode = "MISSING_INVOICE_NUMBER"
	CodeMissingInvoiceDate   SignalCode = "MISSING_INVOICE_DATE"
	CodeMissingVendorName    SignalCode = "MISSING_VENDOR_NAME"
	CodeGSTINInvalid         SignalCode = "GSTIN_INVALID"
	CodeGSTINMissing         SignalCode = "GSTIN_MISSING"
	CodeDuplicateExact       SignalCode = "DUPLICATE_EXACT"
	CodeDuplicateNear        SignalCode = "DUPLICATE_NEAR"
	CodeAmountAnomaly        SignalCode = "AMOUNT_ANOMALY"
	CodeNotEnoughHistory     SignalCode = "NOT_ENOUGH_HISTORY"
)

// Signal is one piece of evidence contributing to the risk verdict. Signals
// are created fresh on every computation pass and never mutated.
type Signal struct {
	Code     SignalCode `json:"code"`
	Severity Severity   `json:"severity"`
	Reason   string     `json:"reason"`
	Evidence Evidence   `json:"evidence"`
}

// Evidence is the audit payload attached to a signal. Fields are populated
// per code:
//
//	GSTIN_INVALID       -> GSTIN
//	DUPLICATE_EXACT     -> DuplicateID
//	DUPLICATE_NEAR      -> SimilarInvoiceID
//	NOT_ENOUGH_HISTORY  -> HistoryCount
//	AMOUNT_ANOMALY      -> ZScore, Mean, Std, Source
type Evidence struct {
	GSTIN            string     `json:"gstin,omitempty"`
	DuplicateID      *uuid.UUID `json:"duplicate_id,omitempty"`
	SimilarInvoiceID *uuid.UUID `json:"similar_invoice_id,omitempty"`
	HistoryCount     *int       `json:"history_count,omitempty"`
	ZScore           *float64   `json:"z_score,omitempty"`
	Mean             *float64   `json:"mean,omitempty"`
	Std              *float64   `json:"std,omitempty"`
	Source           string     `json:"source,omitempty"`
}

// NewSignal builds a signal with empty evidence.
func NewSignal(code SignalCode, severity Severity, reason string) Signal {
	return Signal{Code: code, Severity: severity, Reason: reason}
}

package anomaly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Severity grades how unusual an amount is for the vendor.
type Severity string

const (
	SeverityNone   Severity = "NONE"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Source records which path produced the score, for audit.
type Source string

const (
	SourceLocal            Source = "local"
	SourceExternal         Source = "external"
	SourceExternalFallback Source = "external-fallback"
)

// Result is the outcome of scoring one amount against vendor history.
type Result struct {
	ZScore   float64  `json:"z_score"`
	Severity Severity `json:"severity"`
	Source   Source   `json:"source"`
}

// Mode says whether an external scoring service participates. Resolved once
// at construction, never re-checked per call.
type Mode int

const (
	ModeLocal Mode = iota
	ModeExternal
)

// Config holds the optional external scorer endpoint. An empty endpoint means
// local-only scoring.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

const defaultExternalTimeout = 10 * time.Second

// Scorer converts an amount plus a vendor history summary into a z-score and
// severity. Scoring is best-effort: it always completes and never returns an
// error, whatever the external service does.
type Scorer struct {
	mode     Mode
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

// NewScorer builds a scorer, resolving the external capability from config.
func NewScorer(cfg Config, logger *zap.Logger) *Scorer {
	s := &Scorer{
		mode:    ModeLocal,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if s.timeout <= 0 {
		s.timeout = defaultExternalTimeout
	}
	if cfg.Endpoint != "" {
		s.mode = ModeExternal
		s.endpoint = cfg.Endpoint
		s.apiKey = cfg.APIKey
		s.client = &http.Client{Timeout: s.timeout}
	}
	return s
}

// Mode reports the resolved scoring capability.
func (s *Scorer) Mode() Mode {
	return s.mode
}

// Score produces the anomaly result for the amount. In local mode, no usable
// history (count<1 or zero deviation) yields NONE regardless of the amount.
// The external service, when configured, is consulted first with a bounded
// timeout; a well-formed numeric response wins even when the local guard
// would have said NONE, anything else falls back to the local computation
// tagged external-fallback.
func (s *Scorer) Score(ctx context.Context, amount float64, summary HistorySummary, vendorKey string) Result {
	if s.mode == ModeExternal {
		if res, err := s.scoreExternal(ctx, amount, summary, vendorKey); err == nil {
			return res
		} else {
			s.logger.Warn("external anomaly scorer unavailable, using local fallback",
				zap.String("vendor", vendorKey),
				zap.Error(err))
			local := localScore(amount, summary)
			local.Source = SourceExternalFallback
			return local
		}
	}
	return localScore(amount, summary)
}

// localScore is the deterministic z-score computation. z>3 is HIGH, z>2 is
// MEDIUM, everything else is LOW once history exists. The low tail (z<=0)
// deliberately still reads LOW rather than NONE: an unusually cheap invoice
// is worth a trace in the evidence, just not a signal.
func localScore(amount float64, summary HistorySummary) Result {
	if summary.Count < 1 || summary.Std == 0 {
		return Result{ZScore: 0, Severity: SeverityNone, Source: SourceLocal}
	}

	z := (amount - summary.Mean) / summary.Std
	severity := SeverityLow
	switch {
	case z > 3:
		severity = SeverityHigh
	case z > 2:
		severity = SeverityMedium
	}
	return Result{ZScore: z, Severity: severity, Source: SourceLocal}
}

type externalRequest struct {
	VendorName           string         `json:"vendorName"`
	Amount               float64        `json:"amount"`
	VendorHistorySummary HistorySummary `json:"vendorHistorySummary"`
}

type externalResponse struct {
	ZScore          *float64 `json:"zScore"`
	AnomalySeverity string   `json:"anomalySeverity"`
}

func (s *Scorer) scoreExternal(ctx context.Context, amount float64, summary HistorySummary, vendorKey string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(externalRequest{
		VendorName:           vendorKey,
		Amount:               amount,
		VendorHistorySummary: summary,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("building scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling anomaly scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("anomaly scorer returned status %d", resp.StatusCode)
	}

	var payload externalResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decoding scoring response: %w", err)
	}
	if payload.ZScore == nil {
		return Result{}, fmt.Errorf("scoring response missing numeric zScore")
	}

	severity := Severity(payload.AnomalySeverity)
	switch severity {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh:
	default:
		severity = SeverityLow
	}

	return Result{ZScore: *payload.ZScore, Severity: severity, Source: SourceExternal}, nil
}

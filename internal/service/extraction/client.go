package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/errors"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultAPIVersion   = "2024-11-30"
	modelID             = "prebuilt-invoice"
)

// Config points the client at a document-intelligence analyze endpoint.
// Endpoint and APIKey are required; the client returns an extraction error on
// every call when they are absent.
type Config struct {
	Endpoint     string
	APIKey       string
	APIVersion   string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client submits an invoice document to the prebuilt-invoice model and maps
// the analyzed fields onto the domain's extracted-field shape. The analyze
// API is asynchronous: submit returns an operation URL that is polled until
// the run settles.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Extract reads the stored file and runs it through the analyze model.
// Failures come back as extraction AppErrors so the caller can record them on
// the invoice without failing the batch.
func (c *Client) Extract(ctx context.Context, filePath, mimeType string) (invoice.ExtractedFields, invoice.FieldConfidence, error) {
	var none invoice.ExtractedFields
	var noConf invoice.FieldConfidence

	if c.cfg.Endpoint == "" || c.cfg.APIKey == "" {
		return none, noConf, apperrors.NewExtractionError("document intelligence is not configured")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return none, noConf, apperrors.NewExtractionError("read uploaded file").WithCause(err)
	}

	opURL, err := c.submit(ctx, data, mimeType)
	if err != nil {
		return none, noConf, err
	}

	doc, err := c.poll(ctx, opURL)
	if err != nil {
		return none, noConf, err
	}

	fields, confidence := mapFields(doc)
	return fields, confidence, nil
}

func (c *Client) submit(ctx context.Context, data []byte, mimeType string) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		strings.TrimSuffix(c.cfg.Endpoint, "/"), modelID, c.cfg.APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", apperrors.NewExtractionError("build analyze request").WithCause(err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.NewExtractionError("submit document for analysis").WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", apperrors.NewExtractionError(fmt.Sprintf("analyze submission returned status %d", resp.StatusCode))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", apperrors.NewExtractionError("analyze submission returned no operation location")
	}
	return opURL, nil
}

type analyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Documents []analyzedDocument `json:"documents"`
	} `json:"analyzeResult"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type analyzedDocument struct {
	Fields map[string]documentField `json:"fields"`
}

type documentField struct {
	ValueString   string   `json:"valueString"`
	ValueDate     string   `json:"valueDate"`
	ValueNumber   *float64 `json:"valueNumber"`
	ValueCurrency *struct {
		Amount       *float64 `json:"amount"`
		CurrencyCode string   `json:"currencyCode"`
	} `json:"valueCurrency"`
	Content    string   `json:"content"`
	Confidence *float64 `json:"confidence"`
}

func (c *Client) poll(ctx context.Context, opURL string) (analyzedDocument, error) {
	var none analyzedDocument

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return none, apperrors.NewExtractionError("build poll request").WithCause(err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return none, apperrors.NewExtractionError("poll analysis result").WithCause(err)
		}

		var result analyzeResult
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if decodeErr != nil {
			return none, apperrors.NewExtractionError("decode analysis result").WithCause(decodeErr)
		}

		switch result.Status {
		case "succeeded":
			if len(result.AnalyzeResult.Documents) == 0 {
				return none, apperrors.NewExtractionError("no invoice document detected")
			}
			return result.AnalyzeResult.Documents[0], nil
		case "failed":
			msg := result.Error.Message
			if msg == "" {
				msg = "analysis failed"
			}
			return none, apperrors.NewExtractionError(msg)
		}

		select {
		case <-ctx.Done():
			return none, apperrors.NewExtractionError("analysis timed out").WithCause(ctx.Err())
		case <-ticker.C:
		}
	}
}

func mapFields(doc analyzedDocument) (invoice.ExtractedFields, invoice.FieldConfidence) {
	invoiceNumber := fieldOrNil(doc.Fields, "InvoiceId")
	vendorName := fieldOrNil(doc.Fields, "VendorName")
	gstin := firstField(doc.Fields, "VendorTaxId", "CustomerTaxId")
	invoiceDate := fieldOrNil(doc.Fields, "InvoiceDate")
	total := firstField(doc.Fields, "AmountDue", "Total")
	totalTax := firstField(doc.Fields, "TotalTax", "Tax")

	fields := invoice.ExtractedFields{
		VendorName:    readString(vendorName),
		GSTIN:         readString(gstin),
		InvoiceNumber: readString(invoiceNumber),
		InvoiceDate:   readDate(invoiceDate),
		TotalAmount:   readAmount(total),
		TotalTax:      readAmount(totalTax),
		Currency:      readCurrency(total, fieldOrNil(doc.Fields, "Total"), fieldOrNil(doc.Fields, "AmountDue")),
	}

	confidence := invoice.FieldConfidence{
		VendorName:    readConfidence(vendorName),
		GSTIN:         readConfidence(gstin),
		InvoiceNumber: readConfidence(invoiceNumber),
		InvoiceDate:   readConfidence(invoiceDate),
		TotalAmount:   readConfidence(total),
		TotalTax:      readConfidence(totalTax),
		Currency:      readConfidence(total),
	}
	return fields, confidence
}

func fieldOrNil(fields map[string]documentField, name string) *documentField {
	if f, ok := fields[name]; ok {
		return &f
	}
	return nil
}

func firstField(fields map[string]documentField, names ...string) *documentField {
	for _, name := range names {
		if f := fieldOrNil(fields, name); f != nil {
			return f
		}
	}
	return nil
}

func readString(f *documentField) *string {
	if f == nil {
		return nil
	}
	if f.ValueString != "" {
		s := f.ValueString
		return &s
	}
	if f.Content != "" {
		s := f.Content
		return &s
	}
	return nil
}

func readDate(f *documentField) *time.Time {
	if f == nil {
		return nil
	}
	for _, raw := range []string{f.ValueDate, f.ValueString, f.Content} {
		if raw == "" {
			continue
		}
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
	}
	return nil
}

func readAmount(f *documentField) *decimal.Decimal {
	if f == nil {
		return nil
	}
	if f.ValueNumber != nil {
		d := decimal.NewFromFloat(*f.ValueNumber)
		return &d
	}
	if f.ValueCurrency != nil && f.ValueCurrency.Amount != nil {
		d := decimal.NewFromFloat(*f.ValueCurrency.Amount)
		return &d
	}
	return nil
}

func readCurrency(candidates ...*documentField) *string {
	for _, f := range candidates {
		if f != nil && f.ValueCurrency != nil && f.ValueCurrency.CurrencyCode != "" {
			code := f.ValueCurrency.CurrencyCode
			return &code
		}
	}
	return nil
}

func readConfidence(f *documentField) *float64 {
	if f == nil || f.Confidence == nil {
		return nil
	}
	v := *f.Confidence
	return &v
}

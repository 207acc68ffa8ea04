package explanation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultAPIVersion  = "2024-02-15-preview"
	maxTemplateReasons = 3
)

// Config selects the generation backend. The chat backend is used only when
// endpoint, API key and deployment are all set; otherwise every call renders
// the deterministic template.
type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// Generator produces the human-readable explanation stored on each invoice.
// Generate never returns an error: chat backend failures degrade to the
// template so a flaky upstream cannot block scoring.
type Generator struct {
	cfg     Config
	client  *http.Client
	logger  *zap.Logger
	useChat bool
}

func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Generator{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		useChat: cfg.Endpoint != "" && cfg.APIKey != "" && cfg.Deployment != "",
	}
}

func (g *Generator) Generate(ctx context.Context, fields invoice.ExtractedFields, signals []invoice.Signal, risk invoice.RiskVerdict) string {
	if g.useChat {
		if text, err := g.generateChat(ctx, fields, signals, risk); err == nil {
			return text
		} else {
			g.logger.Warn("chat explanation failed, using template", zap.Error(err))
		}
	}
	return Template(fields, signals, risk)
}

// Template renders the fallback explanation. Deterministic for fixed input.
func Template(fields invoice.ExtractedFields, signals []invoice.Signal, risk invoice.RiskVerdict) string {
	vendor := "Unknown vendor"
	if fields.VendorName != nil {
		vendor = *fields.VendorName
	}
	number := "Unknown invoice"
	if fields.InvoiceNumber != nil {
		number = *fields.InvoiceNumber
	}
	amount := "Unknown amount"
	if fields.TotalAmount != nil {
		amount = fields.TotalAmount.StringFixed(2)
	}

	reasons := "No significant issues were detected."
	if len(signals) > 0 {
		parts := make([]string, 0, maxTemplateReasons)
		for _, s := range signals {
			parts = append(parts, s.Reason)
			if len(parts) == maxTemplateReasons {
				break
			}
		}
		reasons = strings.Join(parts, " ")
	}

	head := fmt.Sprintf("%s invoice %s for %s", vendor, number, amount)
	if fields.Currency != nil {
		head += " " + *fields.Currency
	}
	return fmt.Sprintf("%s was scored %s. %s Recommended action: %s.", head, risk.Level, reasons, risk.Action)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *Generator) generateChat(ctx context.Context, fields invoice.ExtractedFields, signals []invoice.Signal, risk invoice.RiskVerdict) (string, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return "", fmt.Errorf("marshal signals: %w", err)
	}
	riskJSON, err := json.Marshal(risk)
	if err != nil {
		return "", fmt.Errorf("marshal risk: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize invoice risk for auditors in plain English."},
			{Role: "user", Content: fmt.Sprintf(
				"You are an invoice auditor. Write a concise explanation (2-3 sentences) for the risk rating.\nInvoice: %s\nSignals: %s\nRisk: %s",
				fieldsJSON, signalsJSON, riskJSON)},
		},
		Temperature: 0.2,
		MaxTokens:   120,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(g.cfg.Endpoint, "/"), g.cfg.Deployment, g.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat endpoint returned no content")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

package invoice

import (
	"fmt"
	"strings"
)

// RiskLevel is the aggregated grade for one invoice.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel accepts user-supplied filter values. "MED" is a tolerated
// shorthand for MEDIUM.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, nil
	case "MED", "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// Action is the recommended disposition. It is a pure function of the level:
// HIGH->BLOCK, MEDIUM->HOLD, LOW->PROCEED.
type Action string

const (
	ActionProceed Action = "PROCEED"
	ActionHold    Action = "HOLD"
	ActionBlock   Action = "BLOCK"
)

// ActionForLevel maps a risk level to its only valid action.
func ActionForLevel(level RiskLevel) Action {
	switch level {
	case RiskHigh:
		return ActionBlock
	case RiskMedium:
		return ActionHold
	default:
		return ActionProceed
	}
}

// RiskVerdict is the aggregated output for one invoice. Recomputed whole
// whenever signals change, never incrementally updated.
type RiskVerdict struct {
	Level      RiskLevel `json:"level"`
	Score      int       `json:"score"`
	TopReasons []string  `json:"top_reasons"`
	Action     Action    `json:"action"`
}

// EmptyVerdict is the verdict for an invoice with no signals.
func EmptyVerdict() RiskVerdict {
	return RiskVerdict{
		Level:      RiskLow,
		Score:      0,
		TopReasons: []string{},
		Action:     ActionProceed,
	}
}

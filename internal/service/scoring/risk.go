package scoring

import (
	"sort"

	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
)

// Score contributions per severity. The sum is clamped to maxScore.
const (
	scoreHigh   = 35
	scoreMedium = 20
	scoreLow    = 10
	scoreInfo   = 5
	maxScore    = 100
	maxReasons  = 2
)

// ComputeRisk reduces a signal list to one verdict. Pure and deterministic:
// no history access, no clock, no randomness. The level follows the highest
// severity present (INFO never elevates), the action follows the level, and
// the score is the clamped severity sum.
func ComputeRisk(signals []invoice.Signal) invoice.RiskVerdict {
	if len(signals) == 0 {
		return invoice.EmptyVerdict()
	}

	highest := 0
	score := 0
	for _, sig := range signals {
		if rank := sig.Severity.Rank(); rank > highest {
			highest = rank
		}
		switch sig.Severity {
		case invoice.SeverityHigh:
			score += scoreHigh
		case invoice.SeverityMedium:
			score += scoreMedium
		case invoice.SeverityLow:
			score += scoreLow
		default:
			score += scoreInfo
		}
	}
	if score > maxScore {
		score = maxScore
	}

	level := invoice.RiskLow
	switch {
	case highest >= 3:
		level = invoice.RiskHigh
	case highest == 2:
		level = invoice.RiskMedium
	}

	// Stable sort keeps the original check order among equal severities, so
	// tie-breaks are deterministic.
	ordered := make([]invoice.Signal, len(signals))
	copy(ordered, signals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity.Rank() > ordered[j].Severity.Rank()
	})

	topReasons := make([]string, 0, maxReasons)
	for _, sig := range ordered {
		if len(topReasons) == maxReasons {
			break
		}
		topReasons = append(topReasons, sig.Reason)
	}

	return invoice.RiskVerdict{
		Level:      level,
		Score:      score,
		TopReasons: topReasons,
		Action:     invoice.ActionForLevel(level),
	}
}

package anomaly

import "math"

// HistorySummary describes one vendor's historical amounts at computation
// time. Derived fresh on every pass; never persisted.
type HistorySummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// Summarize computes count, arithmetic mean and POPULATION standard deviation
// (divide by n, not n-1) over the given amounts. The z-score severity
// thresholds downstream are calibrated against population variance; switching
// to sample variance would shift every cutoff. Empty input yields all zeros.
func Summarize(values []float64) HistorySummary {
	count := len(values)
	if count == 0 {
		return HistorySummary{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(count)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	return HistorySummary{
		Count: count,
		Mean:  mean,
		Std:   math.Sqrt(sumSq / float64(count)),
	}
}

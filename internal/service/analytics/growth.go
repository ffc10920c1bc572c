package analytics

import "math"

// MaxGrowth caps upward spikes for display.
const MaxGrowth = 1000.0

// Growth is the percentage change from previous to current, rounded to two
// decimals. With no previous baseline it is 0 when current is also zero and
// 100 otherwise; a fall to zero is -100.
func Growth(current, previous int64) float64 {
	switch {
	case previous == 0 && current == 0:
		return 0
	case previous == 0:
		return 100
	case current == 0:
		return -100
	}
	g := float64(current-previous) / float64(previous) * 100
	return round2(math.Min(g, MaxGrowth))
}

// AverageGrowth is the mean of the growth values, 0 for none.
func AverageGrowth(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package pipeline

import (
	"math"

	"pulse/internal/core"
)

// Correlation returns the Pearson coefficient between count and amount.
// It is NaN when view has fewer than two rows or either column is constant.
func Correlation(view []core.TransactionRecord) float64 {
	n := len(view)
	if n < 2 {
		return math.NaN()
	}
	var sumX, sumY float64
	for _, r := range view {
		sumX += float64(r.Count)
		sumY += r.Amount
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var sxx, syy, sxy float64
	for _, r := range view {
		dx := float64(r.Count) - meanX
		dy := r.Amount - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	c := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, c))
}

// CorrelationMatrix is the 2x2 count/amount matrix built from r.
func CorrelationMatrix(r float64) [2][2]float64 {
	if math.IsNaN(r) {
		nan := math.NaN()
		return [2][2]float64{{nan, nan}, {nan, nan}}
	}
	return [2][2]float64{{1, r}, {r, 1}}
}

package analytics

import (
	"math"
	"sort"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance (divides by n).
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sumSquaredDiffs := 0.0
	for _, v := range values {
		diff := v - m
		sumSquaredDiffs += diff * diff
	}
	return sumSquaredDiffs / float64(len(values))
}

func stdDev(values []float64) float64 {
	return math.Sqrt(variance(values))
}

// covariance is the sample covariance (divides by n-1).
func covariance(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	meanX, meanY := mean(x), mean(y)
	sum := 0.0
	for i := range x {
		sum += (x[i] - meanX) * (y[i] - meanY)
	}
	return sum / float64(len(x)-1)
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

// olsSlope fits y = a + b*x with x = 0..n-1 and returns b.
func olsSlope(y []float64) float64 {
	n := len(y)
	if n < 2 {
		return 0
	}
	meanX := float64(n-1) / 2
	meanY := mean(y)

	numerator := 0.0
	denominator := 0.0
	for i, v := range y {
		dx := float64(i) - meanX
		numerator += dx * (v - meanY)
		denominator += dx * dx
	}
	return numerator / denominator
}

// simpleReturns returns (p[i+lag]-p[i])/p[i] for every i.
func simpleReturns(prices []float64, lag int) []float64 {
	if len(prices) <= lag {
		return nil
	}
	out := make([]float64, 0, len(prices)-lag)
	for i := 0; i+lag < len(prices); i++ {
		out = append(out, (prices[i+lag]-prices[i])/prices[i])
	}
	return out
}

func diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := range out {
		out[i] = values[i+1] - values[i]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

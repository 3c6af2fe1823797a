package analytics

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"orderbook-analytics/src/engine"
)

const (
	volatilityWindow  = 100
	wideSpreadWindow  = 10
	wideSpreadMaxBps  = 50.0
	impactDepthLevels = 10
	trendThreshold    = 0.1
)

type SpreadMetrics struct {
	AbsoluteSpread   float64 `json:"absolute_spread"`
	RelativeSpread   float64 `json:"relative_spread"` // percent of mid
	SpreadBps        float64 `json:"spread_bps"`
	EffectiveSpread  float64 `json:"effective_spread"`
	PriceImpact      float64 `json:"price_impact"`
	SpreadVolatility float64 `json:"spread_volatility"`
	IsWideSpread     bool    `json:"is_wide_spread"`
}

type SpreadStatistics struct {
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Q1      float64 `json:"q1"`
	Q3      float64 `json:"q3"`
	IQR     float64 `json:"iqr"`
	Samples int     `json:"samples"`
}

type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

type SpreadAnalyzer struct {
	book    BookReader
	mu      sync.Mutex
	history *Ring[SpreadMetrics]
}

func NewSpreadAnalyzer(book BookReader) *SpreadAnalyzer {
	return &SpreadAnalyzer{
		book:    book,
		history: NewRing[SpreadMetrics](HistoryCapacity),
	}
}

// CalculateAllMetrics measures the current spread and appends the result to
// history. A book without a two-sided quote yields zero metrics that are not
// recorded.
func (sa *SpreadAnalyzer) CalculateAllMetrics() SpreadMetrics {
	q, depth := sa.book.View(impactDepthLevels)
	spread, ok := q.Spread()
	if !ok || !q.HasMid || q.MidPrice == 0 {
		return SpreadMetrics{}
	}
	mid := q.MidPrice

	m := SpreadMetrics{
		AbsoluteSpread: spread,
		RelativeSpread: spread / mid * 100,
	}
	m.SpreadBps = m.RelativeSpread * 100
	m.EffectiveSpread = math.Abs(2 * (mid - (q.BestBid+q.BestAsk)/2))
	m.PriceImpact = priceImpact(depth, spread, mid, 1)

	sa.mu.Lock()
	defer sa.mu.Unlock()

	if sa.history.Len() > 1 {
		recent := sa.history.Last(volatilityWindow)
		spreads := make([]float64, len(recent))
		for i, r := range recent {
			spreads[i] = r.AbsoluteSpread
		}
		m.SpreadVolatility = stdDev(spreads)
	}

	m.IsWideSpread = sa.isWideSpread(m.SpreadBps)
	if m.IsWideSpread {
		log.Debug().Float64("spread_bps", m.SpreadBps).Msg("Wide spread detected")
	}

	sa.history.Push(m)
	return m
}

// priceImpact applies a square-root model whose coefficient is implied by the
// spread over the average liquidity of the top levels.
func priceImpact(depth engine.Depth, spread, mid, quantity float64) float64 {
	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return 0
	}

	avgLiquidity := (depth.TotalBidVolume + depth.TotalAskVolume) / 2
	if avgLiquidity == 0 {
		return 0
	}

	lambda := spread / (avgLiquidity * mid)
	return lambda * math.Sqrt(quantity) * mid
}

// isWideSpread must be called with mu held, before the current sample is stored.
func (sa *SpreadAnalyzer) isWideSpread(bps float64) bool {
	if sa.history.Len() < wideSpreadWindow {
		return false
	}

	recent := sa.spreadBps(wideSpreadWindow)
	avg := mean(recent)
	sigma := stdDev(recent)

	if sigma > 0 && bps > avg+3*sigma {
		return true
	}
	return bps > wideSpreadMaxBps
}

func (sa *SpreadAnalyzer) spreadBps(n int) []float64 {
	recent := sa.history.Last(n)
	out := make([]float64, len(recent))
	for i, r := range recent {
		out[i] = r.SpreadBps
	}
	return out
}

// CalculateSpreadStatistics summarizes the newest window bps samples. The
// window is clamped to the available history; false means there is none.
func (sa *SpreadAnalyzer) CalculateSpreadStatistics(window int) (SpreadStatistics, bool) {
	sa.mu.Lock()
	samples := sa.spreadBps(window)
	sa.mu.Unlock()

	if len(samples) == 0 {
		return SpreadStatistics{}, false
	}

	sorted := sortedCopy(samples)
	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)

	return SpreadStatistics{
		Mean:    mean(samples),
		Median:  percentile(sorted, 50),
		Std:     stdDev(samples),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Q1:      q1,
		Q3:      q3,
		IQR:     q3 - q1,
		Samples: len(samples),
	}, true
}

// GetSpreadTrend classifies the least-squares slope of the newest periods
// bps samples against their index.
func (sa *SpreadAnalyzer) GetSpreadTrend(periods int) Trend {
	sa.mu.Lock()
	if periods <= 0 || sa.history.Len() < periods {
		sa.mu.Unlock()
		return TrendInsufficientData
	}
	samples := sa.spreadBps(periods)
	sa.mu.Unlock()

	slope := olsSlope(samples)
	switch {
	case slope > trendThreshold:
		return TrendIncreasing
	case slope < -trendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// History returns the stored metrics, oldest first.
func (sa *SpreadAnalyzer) History() []SpreadMetrics {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.history.Slice()
}

func (sa *SpreadAnalyzer) HistoryLen() int {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.history.Len()
}

package analytics

import (
	"math"
	"sort"

	"orderbook-analytics/src/engine"
)

const DefaultDepthLevels = 20

// Percentages of total book volume at which VWAPAtDepth is sampled.
var depthPercentages = []float64{0.1, 0.25, 0.5, 1, 2, 5}

type DepthPoint struct {
	OffsetBps        float64 `json:"offset_bps"`
	CumulativeVolume float64 `json:"cumulative_volume"`
}

type DepthVWAP struct {
	Percentage float64 `json:"percentage"`
	VWAP       float64 `json:"vwap"`
}

type DepthMetrics struct {
	TotalBidVolume  float64      `json:"total_bid_volume"`
	TotalAskVolume  float64      `json:"total_ask_volume"`
	VolumeImbalance float64      `json:"volume_imbalance"` // -1 to 1
	CumulativeDepth []DepthPoint `json:"cumulative_depth"`
	VWAPAtDepth     []DepthVWAP  `json:"vwap_at_depth"`
	LiquidityScore  float64      `json:"liquidity_score"`  // 0-100
	OrderBookSlope  float64      `json:"order_book_slope"` // price per unit volume
	DepthResilience float64      `json:"depth_resilience"` // 0-100
}

// DepthAnalyzer keeps no state between calls; every call queries the book.
type DepthAnalyzer struct {
	book   BookReader
	levels int
}

func NewDepthAnalyzer(book BookReader, levels int) *DepthAnalyzer {
	if levels <= 0 {
		levels = DefaultDepthLevels
	}
	return &DepthAnalyzer{book: book, levels: levels}
}

func (da *DepthAnalyzer) Levels() int { return da.levels }

func (da *DepthAnalyzer) CalculateAllMetrics() DepthMetrics {
	q, depth := da.book.View(da.levels)
	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return DepthMetrics{}
	}

	m := DepthMetrics{
		TotalBidVolume:  depth.TotalBidVolume,
		TotalAskVolume:  depth.TotalAskVolume,
		VolumeImbalance: imbalance(depth.TotalBidVolume, depth.TotalAskVolume),
		CumulativeDepth: cumulativeDepth(q, depth),
		VWAPAtDepth:     vwapAtDepth(depth),
		OrderBookSlope:  bookSlope(depth),
		DepthResilience: depthResilience(depth),
	}
	m.LiquidityScore = liquidityScore(m)
	return m
}

func imbalance(bidVolume, askVolume float64) float64 {
	total := bidVolume + askVolume
	if total <= 0 {
		return 0
	}
	return (bidVolume - askVolume) / total
}

// cumulativeDepth merges both sides into one curve of running volume against
// the level's offset from mid in basis points, sorted by offset.
func cumulativeDepth(q engine.Quote, depth engine.Depth) []DepthPoint {
	if !q.HasMid || q.MidPrice == 0 {
		return []DepthPoint{}
	}
	mid := q.MidPrice

	points := make([]DepthPoint, 0, len(depth.Bids)+len(depth.Asks))
	for _, side := range [][]engine.LevelInfo{depth.Bids, depth.Asks} {
		cumulative := 0.0
		for _, level := range side {
			cumulative += level.Quantity
			points = append(points, DepthPoint{
				OffsetBps:        (level.Price - mid) / mid * 10000,
				CumulativeVolume: cumulative,
			})
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].OffsetBps < points[j].OffsetBps })
	return points
}

func vwapAtDepth(depth engine.Depth) []DepthVWAP {
	total := depth.TotalBidVolume + depth.TotalAskVolume
	out := make([]DepthVWAP, 0, len(depthPercentages))
	for _, pct := range depthPercentages {
		out = append(out, DepthVWAP{
			Percentage: pct,
			VWAP:       partialVWAP(depth, total*pct/100),
		})
	}
	return out
}

// partialVWAP fills half the target from the bids, then tops up to the full
// target from the asks. Each side stops at the level that would overshoot,
// taking only the remainder from it.
func partialVWAP(depth engine.Depth, target float64) float64 {
	totalCost, filled := 0.0, 0.0

	fill := func(levels []engine.LevelInfo, limit float64) {
		for _, level := range levels {
			if filled+level.Quantity <= limit {
				totalCost += level.Price * level.Quantity
				filled += level.Quantity
				continue
			}
			remaining := limit - filled
			totalCost += level.Price * remaining
			filled += remaining
			return
		}
	}

	fill(depth.Bids, target/2)
	fill(depth.Asks, target)

	if filled == 0 {
		return 0
	}
	return totalCost / filled
}

// bookSlope averages the price span per unit volume of each side holding at
// least two levels.
func bookSlope(depth engine.Depth) float64 {
	var slopes []float64

	if n := len(depth.Bids); n > 1 && depth.TotalBidVolume > 0 {
		slopes = append(slopes, (depth.Bids[0].Price-depth.Bids[n-1].Price)/depth.TotalBidVolume)
	}
	if n := len(depth.Asks); n > 1 && depth.TotalAskVolume > 0 {
		slopes = append(slopes, (depth.Asks[n-1].Price-depth.Asks[0].Price)/depth.TotalAskVolume)
	}

	return mean(slopes)
}

func liquidityScore(m DepthMetrics) float64 {
	score := 50.0

	total := m.TotalBidVolume + m.TotalAskVolume
	switch {
	case total > 1000:
		score += 20
	case total < 100:
		score -= 20
	}

	switch abs := math.Abs(m.VolumeImbalance); {
	case abs > 0.7:
		score -= 30
	case abs < 0.2:
		score += 10
	}

	// a zero slope means it could not be measured
	if m.OrderBookSlope > 0 {
		switch {
		case m.OrderBookSlope < 0.001:
			score += 20
		case m.OrderBookSlope > 0.01:
			score -= 20
		}
	}

	return clamp(score, 0, 100)
}

// depthResilience scores how evenly volume is spread across levels using the
// Herfindahl index of each side. Fewer than three levels on a side scores 0.
func depthResilience(depth engine.Depth) float64 {
	if len(depth.Bids) < 3 || len(depth.Asks) < 3 {
		return 0
	}

	bidConcentration := herfindahl(depth.Bids, depth.TotalBidVolume)
	askConcentration := herfindahl(depth.Asks, depth.TotalAskVolume)

	return clamp(100*(1-(bidConcentration+askConcentration)/2), 0, 100)
}

func herfindahl(levels []engine.LevelInfo, total float64) float64 {
	if total == 0 {
		return 1
	}
	h := 0.0
	for _, level := range levels {
		share := level.Quantity / total
		h += share * share
	}
	return h
}

// CalculateVolumeImbalanceAtLevels recomputes the imbalance with the book
// truncated at each requested level count.
func (da *DepthAnalyzer) CalculateVolumeImbalanceAtLevels(levelCounts []int) map[int]float64 {
	out := make(map[int]float64, len(levelCounts))
	for _, n := range levelCounts {
		depth := da.book.Depth(n)
		out[n] = imbalance(depth.TotalBidVolume, depth.TotalAskVolume)
	}
	return out
}

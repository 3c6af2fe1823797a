package analytics

import (
	"math"
	"sync"
)

const (
	DefaultStressVolume   = 10000.0
	DefaultImpactQuantity = 100.0

	liquidityWindow     = 20
	coverageDepthLevels = 20
	resilienceDepth     = 10
	resilienceWindow    = 10
	efficiencyWindow    = 20
	impactModelDepth    = 10
	neutralScore        = 50.0
	neutralEfficiency   = 0.5
	kyleScoreScale      = 1000.0
	amihudScoreScale    = 10000.0
	kyleScoreWeight     = 0.3
	amihudScoreWeight   = 0.2
	coverageScoreWeight = 0.2
	resilienceWeight    = 0.2
	efficiencyWeight    = 0.1
)

type LiquidityConfig struct {
	StressVolume   float64 `yaml:"stress_volume"`
	ImpactQuantity float64 `yaml:"impact_quantity"`
}

func DefaultLiquidityConfig() LiquidityConfig {
	return LiquidityConfig{
		StressVolume:   DefaultStressVolume,
		ImpactQuantity: DefaultImpactQuantity,
	}
}

// MarketImpact holds the estimated price impact of one reference quantity
// under each model. A nil field means the model could not be evaluated.
type MarketImpact struct {
	Linear     *float64 `json:"linear,omitempty"`
	SquareRoot *float64 `json:"sqrt,omitempty"`
	Kyle       *float64 `json:"kyle,omitempty"`
}

type LiquidityMetrics struct {
	KyleLambda             float64      `json:"kyle_lambda"`
	AmihudRatio            float64      `json:"amihud_ratio"`
	LiquidityCoverageRatio float64      `json:"liquidity_coverage_ratio"`
	ResilienceScore        float64      `json:"resilience_score"` // 0-100
	PriceEfficiency        float64      `json:"price_efficiency"` // 0-1
	MarketImpactModels     MarketImpact `json:"market_impact_models"`
	OverallLiquidityScore  float64      `json:"overall_liquidity_score"` // 0-100
}

type ImpactPoint struct {
	Quantity   float64  `json:"quantity"`
	Linear     *float64 `json:"linear,omitempty"`
	SquareRoot *float64 `json:"sqrt,omitempty"`
	Kyle       *float64 `json:"kyle,omitempty"`
}

// LiquidityAnalyzer combines the book with a caller-fed price and volume
// series. The caller keeps the two series aligned in time.
type LiquidityAnalyzer struct {
	book    BookReader
	cfg     LiquidityConfig
	mu      sync.Mutex
	prices  *Ring[float64]
	volumes *Ring[float64]
}

func NewLiquidityAnalyzer(book BookReader, prices, volumes []float64) *LiquidityAnalyzer {
	return NewLiquidityAnalyzerWithConfig(book, DefaultLiquidityConfig(), prices, volumes)
}

func NewLiquidityAnalyzerWithConfig(book BookReader, cfg LiquidityConfig, prices, volumes []float64) *LiquidityAnalyzer {
	if cfg.StressVolume <= 0 {
		cfg.StressVolume = DefaultStressVolume
	}
	if cfg.ImpactQuantity <= 0 {
		cfg.ImpactQuantity = DefaultImpactQuantity
	}

	la := &LiquidityAnalyzer{
		book:    book,
		cfg:     cfg,
		prices:  NewRing[float64](HistoryCapacity),
		volumes: NewRing[float64](HistoryCapacity),
	}
	for _, p := range prices {
		la.prices.Push(p)
	}
	for _, v := range volumes {
		la.volumes.Push(v)
	}
	return la
}

func (la *LiquidityAnalyzer) Config() LiquidityConfig { return la.cfg }

// UpdateHistory appends one sample to both series.
func (la *LiquidityAnalyzer) UpdateHistory(price, volume float64) {
	la.mu.Lock()
	defer la.mu.Unlock()
	la.prices.Push(price)
	la.volumes.Push(volume)
}

// HistoryLen reports the length of the price and volume series.
func (la *LiquidityAnalyzer) HistoryLen() (prices, volumes int) {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.prices.Len(), la.volumes.Len()
}

func (la *LiquidityAnalyzer) CalculateAllMetrics() LiquidityMetrics {
	la.mu.Lock()
	defer la.mu.Unlock()

	m := LiquidityMetrics{
		KyleLambda:             la.kyleLambda(liquidityWindow),
		AmihudRatio:            la.amihudRatio(liquidityWindow),
		LiquidityCoverageRatio: la.LiquidityCoverageRatio(la.cfg.StressVolume),
		ResilienceScore:        la.resilienceScore(),
		PriceEfficiency:        la.priceEfficiency(),
		MarketImpactModels:     la.marketImpactModels(la.cfg.ImpactQuantity),
	}
	m.OverallLiquidityScore = CompositeScore(m)
	return m
}

func (la *LiquidityAnalyzer) KyleLambda(window int) float64 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.kyleLambda(window)
}

// kyleLambda regresses simple returns on volume changes over the trailing
// window: cov(r, dV) / var(dV).
func (la *LiquidityAnalyzer) kyleLambda(window int) float64 {
	if window < 2 || la.prices.Len() < window || la.volumes.Len() < window {
		return 0
	}

	returns := simpleReturns(la.prices.Last(window), 1)
	volumeChanges := diff(la.volumes.Last(window))
	if len(returns) != len(volumeChanges) || len(returns) < 2 {
		return 0
	}

	volumeVariance := variance(volumeChanges)
	if volumeVariance == 0 {
		return 0
	}
	return covariance(returns, volumeChanges) / volumeVariance
}

func (la *LiquidityAnalyzer) AmihudRatio(window int) float64 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.amihudRatio(window)
}

// amihudRatio averages |return| per unit volume, pairing each return with the
// volume sample that closes it. Zero-volume samples are skipped.
func (la *LiquidityAnalyzer) amihudRatio(window int) float64 {
	if window < 2 || la.prices.Len() < window || la.volumes.Len() < window {
		return 0
	}

	returns := simpleReturns(la.prices.Last(window), 1)
	volumes := la.volumes.Last(window)[1:]

	var ratios []float64
	for i, r := range returns {
		if volumes[i] > 0 {
			ratios = append(ratios, math.Abs(r)/volumes[i])
		}
	}
	return mean(ratios)
}

// LiquidityCoverageRatio compares the volume resting in the top levels with
// a stress volume. It is unbounded above.
func (la *LiquidityAnalyzer) LiquidityCoverageRatio(stressVolume float64) float64 {
	if stressVolume <= 0 {
		return 0
	}
	depth := la.book.Depth(coverageDepthLevels)
	return (depth.TotalBidVolume + depth.TotalAskVolume) / stressVolume
}

func (la *LiquidityAnalyzer) ResilienceScore() float64 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.resilienceScore()
}

// resilienceScore averages whichever of the top-of-book concentration, price
// volatility and volume stability sub-scores can be computed.
func (la *LiquidityAnalyzer) resilienceScore() float64 {
	var factors []float64

	depth := la.book.Depth(resilienceDepth)
	if len(depth.Bids) > 0 && len(depth.Asks) > 0 {
		topBid := topShare(depth.Bids[0].Quantity, depth.TotalBidVolume)
		topAsk := topShare(depth.Asks[0].Quantity, depth.TotalAskVolume)
		factors = append(factors, 100*(1-(topBid+topAsk)/2))
	}

	if la.prices.Len() > resilienceWindow {
		recent := la.prices.Last(resilienceWindow)
		cv := 0.0
		if avg := mean(recent); avg > 0 {
			cv = stdDev(recent) / avg
		}
		factors = append(factors, 100*(1-math.Min(cv*100, 1)))
	}

	if la.volumes.Len() > 0 {
		recent := la.volumes.Last(resilienceWindow)
		if avg := mean(recent); avg != 0 {
			factors = append(factors, 100*(1-stdDev(recent)/avg))
		}
	}

	if len(factors) == 0 {
		return neutralScore
	}
	return mean(factors)
}

func topShare(top, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return top / total
}

func (la *LiquidityAnalyzer) PriceEfficiency() float64 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.priceEfficiency()
}

// priceEfficiency is a variance-ratio test: under a random walk the variance
// of 2-step returns is twice that of 1-step returns.
func (la *LiquidityAnalyzer) priceEfficiency() float64 {
	if la.prices.Len() < efficiencyWindow {
		return neutralEfficiency
	}

	prices := la.prices.Last(efficiencyWindow)
	returns := simpleReturns(prices, 1)
	if len(returns) < 4 {
		return neutralEfficiency
	}

	oneStep := variance(returns)
	if oneStep <= 0 {
		return neutralEfficiency
	}
	twoStep := variance(simpleReturns(prices, 2)) / 2

	ratio := twoStep / oneStep
	return clamp(1-math.Abs(ratio-1), 0, 1)
}

func (la *LiquidityAnalyzer) MarketImpactModels(quantity float64) MarketImpact {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.marketImpactModels(quantity)
}

func (la *LiquidityAnalyzer) marketImpactModels(quantity float64) MarketImpact {
	var models MarketImpact

	q, depth := la.book.View(impactModelDepth)
	if !q.HasMid || q.MidPrice == 0 {
		return models
	}
	mid := q.MidPrice

	liquidity := depth.TotalBidVolume + depth.TotalAskVolume

	if liquidity > 0 {
		linear := (1 / liquidity) * quantity * mid
		models.Linear = &linear

		if spread, ok := q.Spread(); ok {
			sqrtImpact := spread / (2 * math.Sqrt(liquidity)) * math.Sqrt(quantity) * mid
			models.SquareRoot = &sqrtImpact
		}
	}

	kyle := la.kyleLambda(liquidityWindow) * quantity * mid
	models.Kyle = &kyle

	return models
}

// ImpactCurve scales each available model's impact at the reference quantity
// by sqrt(q) for points evenly spaced quantities between 1 and maxQuantity.
func (la *LiquidityAnalyzer) ImpactCurve(maxQuantity float64, points int) []ImpactPoint {
	if points <= 0 {
		return []ImpactPoint{}
	}
	models := la.MarketImpactModels(la.cfg.ImpactQuantity)

	scale := func(base *float64, factor float64) *float64 {
		if base == nil {
			return nil
		}
		v := *base * factor
		return &v
	}

	step := 0.0
	if points > 1 {
		step = (maxQuantity - 1) / float64(points-1)
	}

	curve := make([]ImpactPoint, 0, points)
	for i := 0; i < points; i++ {
		quantity := 1 + step*float64(i)
		factor := math.Sqrt(quantity)
		curve = append(curve, ImpactPoint{
			Quantity:   quantity,
			Linear:     scale(models.Linear, factor),
			SquareRoot: scale(models.SquareRoot, factor),
			Kyle:       scale(models.Kyle, factor),
		})
	}
	return curve
}

// CompositeScore blends the individual measures into a 0-100 score. A
// negative lambda or Amihud ratio drops that component from the blend.
func CompositeScore(m LiquidityMetrics) float64 {
	var weighted, totalWeight float64
	add := func(score, weight float64) {
		weighted += score * weight
		totalWeight += weight
	}

	switch {
	case m.KyleLambda > 0:
		add(100*math.Exp(-m.KyleLambda*kyleScoreScale), kyleScoreWeight)
	case m.KyleLambda == 0:
		add(neutralScore, kyleScoreWeight)
	}

	switch {
	case m.AmihudRatio > 0:
		add(100*math.Exp(-m.AmihudRatio*amihudScoreScale), amihudScoreWeight)
	case m.AmihudRatio == 0:
		add(neutralScore, amihudScoreWeight)
	}

	add(math.Min(m.LiquidityCoverageRatio*100, 100), coverageScoreWeight)
	add(m.ResilienceScore, resilienceWeight)
	add(m.PriceEfficiency*100, efficiencyWeight)

	if totalWeight == 0 {
		return neutralScore
	}
	return clamp(weighted/totalWeight, 0, 100)
}

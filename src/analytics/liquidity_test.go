package analytics_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-analytics/src/analytics"
	"orderbook-analytics/src/engine"
)

// proportionalSeries builds 20 samples whose returns are exactly k times the
// volume changes.
func proportionalSeries(k float64) (prices, volumes []float64) {
	prices = []float64{100}
	volumes = []float64{10}
	for i := 1; i < 20; i++ {
		dv := float64(1 + i%2)
		volumes = append(volumes, volumes[i-1]+dv)
		prices = append(prices, prices[i-1]*(1+k*dv))
	}
	return prices, volumes
}

func TestLiquidityKyleLambda(t *testing.T) {
	prices, volumes := proportionalSeries(0.001)
	la := analytics.NewLiquidityAnalyzer(sampleBook(), prices, volumes)

	// sample covariance over population variance of 19 points
	assert.InDelta(t, 0.001*19.0/18.0, la.KyleLambda(20), 1e-12)

	short := analytics.NewLiquidityAnalyzer(sampleBook(), prices[:19], volumes[:19])
	assert.Equal(t, 0.0, short.KyleLambda(20), "fewer samples than the window")

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 5
	}
	constantVolume := analytics.NewLiquidityAnalyzer(sampleBook(), prices, flat)
	assert.Equal(t, 0.0, constantVolume.KyleLambda(20), "zero volume variance")
}

func TestLiquidityAmihudRatio(t *testing.T) {
	prices := make([]float64, 20)
	volumes := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i%2)
		volumes[i] = 10
	}
	la := analytics.NewLiquidityAnalyzer(sampleBook(), prices, volumes)

	// ten moves 100->101 and nine moves 101->100
	expected := (10*(0.01/10) + 9*((1.0/101)/10)) / 19
	assert.InDelta(t, expected, la.AmihudRatio(20), 1e-15)

	zero := make([]float64, 20)
	assert.Equal(t, 0.0, analytics.NewLiquidityAnalyzer(sampleBook(), prices, zero).AmihudRatio(20))
}

func TestLiquidityAmihudSkipsZeroVolume(t *testing.T) {
	prices := make([]float64, 20)
	volumes := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i%2)
		volumes[i] = 10
	}
	// only the first move keeps a nonzero closing volume
	for i := 2; i < 20; i++ {
		volumes[i] = 0
	}
	la := analytics.NewLiquidityAnalyzer(sampleBook(), prices, volumes)

	assert.InDelta(t, 0.01/10, la.AmihudRatio(20), 1e-15)
}

func TestLiquidityCoverageRatio(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)

	assert.InDelta(t, 10.0/10000.0, la.LiquidityCoverageRatio(analytics.DefaultStressVolume), 1e-15)
	assert.Equal(t, 2.0, la.LiquidityCoverageRatio(5))
	assert.Equal(t, 0.0, la.LiquidityCoverageRatio(0))
}

func TestLiquidityResilienceScore(t *testing.T) {
	empty := analytics.NewLiquidityAnalyzer(engine.NewOrderBook("X"), nil, nil)
	assert.Equal(t, 50.0, empty.ResilienceScore(), "nothing computable")

	// top shares 2/5 and 1/5
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)
	assert.InDelta(t, 70.0, la.ResilienceScore(), 1e-9)

	// constant prices and volumes add two perfect sub-scores
	for i := 0; i < 11; i++ {
		la.UpdateHistory(100, 10)
	}
	assert.InDelta(t, (70.0+100+100)/3, la.ResilienceScore(), 1e-9)
}

func TestLiquidityPriceEfficiency(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)
	assert.Equal(t, 0.5, la.PriceEfficiency(), "too few samples")

	for i := 0; i < 20; i++ {
		la.UpdateHistory(100, 1)
	}
	assert.Equal(t, 0.5, la.PriceEfficiency(), "flat prices have no variance")

	alternating := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)
	for i := 0; i < 20; i++ {
		alternating.UpdateHistory(100+float64(i%2), 1)
	}
	// two-step returns are zero, so the variance ratio is 0
	assert.InDelta(t, 0.0, alternating.PriceEfficiency(), 1e-12)

	walk := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)
	price := 100.0
	for i := 0; i < 40; i++ {
		price *= 1 + 0.001*math.Sin(float64(i*i))
		walk.UpdateHistory(price, 1)
	}
	e := walk.PriceEfficiency()
	assert.GreaterOrEqual(t, e, 0.0)
	assert.LessOrEqual(t, e, 1.0)
}

func TestLiquidityMarketImpactModels(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)

	models := la.MarketImpactModels(100)

	require.NotNil(t, models.Linear)
	require.NotNil(t, models.SquareRoot)
	require.NotNil(t, models.Kyle)
	assert.InDelta(t, 100*100.5/10, *models.Linear, 1e-9)
	assert.InDelta(t, 1/(2*math.Sqrt(10))*10*100.5, *models.SquareRoot, 1e-9)
	assert.Equal(t, 0.0, *models.Kyle)

	empty := analytics.NewLiquidityAnalyzer(engine.NewOrderBook("X"), nil, nil).MarketImpactModels(100)
	assert.Nil(t, empty.Linear)
	assert.Nil(t, empty.SquareRoot)
	assert.Nil(t, empty.Kyle)
}

func TestLiquidityImpactCurve(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)

	curve := la.ImpactCurve(9, 3)

	require.Len(t, curve, 3)
	assert.Equal(t, []float64{1, 5, 9}, []float64{curve[0].Quantity, curve[1].Quantity, curve[2].Quantity})
	require.NotNil(t, curve[2].Linear)
	assert.InDelta(t, 1005.0*3, *curve[2].Linear, 1e-9)

	assert.Empty(t, la.ImpactCurve(100, 0))

	empty := analytics.NewLiquidityAnalyzer(engine.NewOrderBook("X"), nil, nil).ImpactCurve(100, 2)
	require.Len(t, empty, 2)
	assert.Nil(t, empty[0].Linear)
}

func TestLiquidityCompositeScore(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)

	m := la.CalculateAllMetrics()

	assert.Equal(t, 0.0, m.KyleLambda)
	assert.Equal(t, 0.0, m.AmihudRatio)
	assert.Equal(t, 0.5, m.PriceEfficiency)
	// 50*0.3 + 50*0.2 + 0.1*0.2 + 70*0.2 + 50*0.1
	assert.InDelta(t, 44.02, m.OverallLiquidityScore, 1e-9)
}

func TestLiquidityCompositeScoreNegativeLambda(t *testing.T) {
	score := analytics.CompositeScore(analytics.LiquidityMetrics{
		KyleLambda:             -1,
		LiquidityCoverageRatio: 5,
		ResilienceScore:        100,
		PriceEfficiency:        1,
	})

	// the lambda component is dropped and the rest reweighted
	assert.InDelta(t, (50*0.2+100*0.2+100*0.2+100*0.1)/0.7, score, 1e-9)
}

func TestLiquidityCompositeScoreBounds(t *testing.T) {
	low := analytics.CompositeScore(analytics.LiquidityMetrics{KyleLambda: 1, AmihudRatio: 1, ResilienceScore: -500})
	assert.Equal(t, 0.0, low)

	high := analytics.CompositeScore(analytics.LiquidityMetrics{LiquidityCoverageRatio: 100, ResilienceScore: 100, PriceEfficiency: 1})
	assert.LessOrEqual(t, high, 100.0)
}

func TestLiquidityHistoryBounded(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)
	for i := 0; i < analytics.HistoryCapacity+5; i++ {
		la.UpdateHistory(100, 1)
	}

	prices, volumes := la.HistoryLen()
	assert.Equal(t, analytics.HistoryCapacity, prices)
	assert.Equal(t, analytics.HistoryCapacity, volumes)
}

func TestLiquidityConfigDefaults(t *testing.T) {
	la := analytics.NewLiquidityAnalyzerWithConfig(sampleBook(), analytics.LiquidityConfig{StressVolume: 5}, nil, nil)

	assert.Equal(t, 5.0, la.Config().StressVolume)
	assert.Equal(t, analytics.DefaultImpactQuantity, la.Config().ImpactQuantity)
	assert.Equal(t, 2.0, la.CalculateAllMetrics().LiquidityCoverageRatio)
}

func TestLiquidityConcurrentUpdates(t *testing.T) {
	la := analytics.NewLiquidityAnalyzer(sampleBook(), nil, nil)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				la.UpdateHistory(100+float64(g), float64(i+1))
				la.CalculateAllMetrics()
			}
		}(g)
	}
	wg.Wait()

	prices, volumes := la.HistoryLen()
	assert.Equal(t, 200, prices)
	assert.Equal(t, 200, volumes)
}

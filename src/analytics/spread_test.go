package analytics_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-analytics/src/analytics"
	"orderbook-analytics/src/engine"
)

func sampleBook() *engine.OrderBook {
	ob := engine.NewOrderBook("BTC/USDT")
	ob.UpdateBids([]engine.Entry{{Price: 100, Quantity: 2}, {Price: 99, Quantity: 3}})
	ob.UpdateAsks([]engine.Entry{{Price: 101, Quantity: 1}, {Price: 102, Quantity: 4}})
	return ob
}

func TestSpreadMetricsBasic(t *testing.T) {
	sa := analytics.NewSpreadAnalyzer(sampleBook())

	m := sa.CalculateAllMetrics()

	assert.Equal(t, 1.0, m.AbsoluteSpread)
	assert.InDelta(t, 1/100.5*100, m.RelativeSpread, 1e-9)
	assert.InDelta(t, 1/100.5*10000, m.SpreadBps, 1e-9)
	assert.Equal(t, 0.0, m.EffectiveSpread)
	// lambda = 1 / (5 * 100.5), impact = lambda * sqrt(1) * 100.5
	assert.InDelta(t, 0.2, m.PriceImpact, 1e-9)
	assert.Equal(t, 0.0, m.SpreadVolatility)
	assert.Equal(t, 1, sa.HistoryLen())
}

func TestSpreadMetricsDegraded(t *testing.T) {
	ob := engine.NewOrderBook("ETH/USDT")
	ob.UpdateBids([]engine.Entry{{Price: 100, Quantity: 1}})
	sa := analytics.NewSpreadAnalyzer(ob)

	m := sa.CalculateAllMetrics()

	assert.Equal(t, analytics.SpreadMetrics{}, m)
	assert.Equal(t, 0, sa.HistoryLen(), "degraded metrics are not recorded")
}

func TestSpreadWideFlagNeedsTenSamples(t *testing.T) {
	sa := analytics.NewSpreadAnalyzer(sampleBook())

	// ~99.5 bps is above the 50 bps ceiling, but history is too short
	for i := 0; i < 5; i++ {
		m := sa.CalculateAllMetrics()
		assert.False(t, m.IsWideSpread, "call %d", i)
	}
	for i := 5; i < 10; i++ {
		assert.False(t, sa.CalculateAllMetrics().IsWideSpread)
	}

	assert.True(t, sa.CalculateAllMetrics().IsWideSpread, "ten prior samples allow the absolute threshold")
}

func TestSpreadWideFlagSigma(t *testing.T) {
	ob := engine.NewOrderBook("AAPL")
	ob.UpdateBids([]engine.Entry{{Price: 10000, Quantity: 1}})
	sa := analytics.NewSpreadAnalyzer(ob)

	// alternate 1 bp and 2 bp spreads, both far below 50 bps
	for i := 0; i < 10; i++ {
		ob.UpdateAsks([]engine.Entry{{Price: 10001 + float64(i%2), Quantity: 1}})
		require.False(t, sa.CalculateAllMetrics().IsWideSpread)
	}

	ob.UpdateAsks([]engine.Entry{{Price: 10004, Quantity: 1}})
	m := sa.CalculateAllMetrics()
	assert.Less(t, m.SpreadBps, 50.0)
	assert.True(t, m.IsWideSpread, "a jump beyond three sigma is flagged")
}

func TestSpreadVolatility(t *testing.T) {
	ob := sampleBook()
	sa := analytics.NewSpreadAnalyzer(ob)

	sa.CalculateAllMetrics()
	sa.CalculateAllMetrics()

	ob.UpdateAsks([]engine.Entry{{Price: 103, Quantity: 1}})
	assert.Equal(t, 0.0, sa.CalculateAllMetrics().SpreadVolatility)

	// stored spreads are now 1, 1, 3
	m := sa.CalculateAllMetrics()
	assert.InDelta(t, 0.9428090415820634, m.SpreadVolatility, 1e-12)
}

func TestSpreadStatistics(t *testing.T) {
	ob := engine.NewOrderBook("AAPL")
	ob.UpdateBids([]engine.Entry{{Price: 10000, Quantity: 1}})
	sa := analytics.NewSpreadAnalyzer(ob)

	_, ok := sa.CalculateSpreadStatistics(100)
	assert.False(t, ok, "no history yet")

	for _, ask := range []float64{10001, 10002, 10003, 10004} {
		ob.UpdateAsks([]engine.Entry{{Price: ask, Quantity: 1}})
		sa.CalculateAllMetrics()
	}

	stats, ok := sa.CalculateSpreadStatistics(100)
	require.True(t, ok)
	assert.Equal(t, 4, stats.Samples, "window is clamped to history")

	history := sa.History()
	require.Len(t, history, 4)
	assert.Equal(t, history[0].SpreadBps, stats.Min)
	assert.Equal(t, history[3].SpreadBps, stats.Max)
	assert.InDelta(t, (history[1].SpreadBps+history[2].SpreadBps)/2, stats.Median, 1e-9)
	assert.InDelta(t, stats.Q3-stats.Q1, stats.IQR, 1e-12)
	assert.LessOrEqual(t, stats.Q1, stats.Median)
	assert.LessOrEqual(t, stats.Median, stats.Q3)

	last2, ok := sa.CalculateSpreadStatistics(2)
	require.True(t, ok)
	assert.Equal(t, 2, last2.Samples)
	assert.Equal(t, history[2].SpreadBps, last2.Min)

	_, ok = sa.CalculateSpreadStatistics(0)
	assert.False(t, ok)
}

func TestSpreadTrend(t *testing.T) {
	ob := engine.NewOrderBook("AAPL")
	ob.UpdateBids([]engine.Entry{{Price: 100, Quantity: 1}})
	sa := analytics.NewSpreadAnalyzer(ob)

	ob.UpdateAsks([]engine.Entry{{Price: 101, Quantity: 1}})
	sa.CalculateAllMetrics()
	assert.Equal(t, analytics.TrendInsufficientData, sa.GetSpreadTrend(5))

	for i := 1; i < 5; i++ {
		ob.UpdateAsks([]engine.Entry{{Price: 101 + float64(i), Quantity: 1}})
		sa.CalculateAllMetrics()
	}
	assert.Equal(t, analytics.TrendIncreasing, sa.GetSpreadTrend(5))

	for i := 4; i >= 0; i-- {
		ob.UpdateAsks([]engine.Entry{{Price: 101 + float64(i), Quantity: 1}})
		sa.CalculateAllMetrics()
	}
	assert.Equal(t, analytics.TrendDecreasing, sa.GetSpreadTrend(5))

	for i := 0; i < 5; i++ {
		sa.CalculateAllMetrics()
	}
	assert.Equal(t, analytics.TrendStable, sa.GetSpreadTrend(5))
	assert.Equal(t, analytics.TrendInsufficientData, sa.GetSpreadTrend(0))
}

func TestSpreadHistoryBounded(t *testing.T) {
	sa := analytics.NewSpreadAnalyzer(sampleBook())

	for i := 0; i < analytics.HistoryCapacity+5; i++ {
		sa.CalculateAllMetrics()
	}

	assert.Equal(t, analytics.HistoryCapacity, sa.HistoryLen())
}

func TestSpreadConcurrentCalls(t *testing.T) {
	ob := sampleBook()
	sa := analytics.NewSpreadAnalyzer(ob)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sa.CalculateAllMetrics()
				sa.CalculateSpreadStatistics(20)
				sa.GetSpreadTrend(10)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, sa.HistoryLen())
}

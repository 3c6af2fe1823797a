package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"orderbook-analytics/src/analytics"
)

// Collector owns a private registry so tests and multiple servers in one
// process never collide on metric names.
type Collector struct {
	registry *prometheus.Registry

	bookUpdates     *prometheus.CounterVec
	droppedEntries  *prometheus.CounterVec
	midPrice        *prometheus.GaugeVec
	spreadBps       *prometheus.GaugeVec
	wideSpreads     *prometheus.CounterVec
	volumeImbalance *prometheus.GaugeVec
	depthScore      *prometheus.GaugeVec
	kyleLambda      *prometheus.GaugeVec
	liquidityScore  *prometheus.GaugeVec
	requestLatency  *prometheus.HistogramVec
}

func New(logger zerolog.Logger) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbook_side_updates_total", Help: "Side replacements applied by symbol and side",
		}, []string{"symbol", "side"}),
		droppedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbook_dropped_entries_total", Help: "Update entries dropped for non-positive price or quantity",
		}, []string{"symbol", "side"}),
		midPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderbook_mid_price", Help: "Last published mid price",
		}, []string{"symbol"}),
		spreadBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderbook_spread_bps", Help: "Last computed spread in basis points",
		}, []string{"symbol"}),
		wideSpreads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbook_wide_spreads_total", Help: "Spread samples flagged as abnormally wide",
		}, []string{"symbol"}),
		volumeImbalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderbook_volume_imbalance", Help: "Bid/ask volume imbalance in [-1, 1]",
		}, []string{"symbol"}),
		depthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderbook_depth_liquidity_score", Help: "Depth heuristic liquidity score (0-100)",
		}, []string{"symbol"}),
		kyleLambda: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderbook_kyle_lambda", Help: "Kyle's lambda over the trailing window",
		}, []string{"symbol"}),
		liquidityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderbook_liquidity_score", Help: "Composite liquidity score (0-100)",
		}, []string{"symbol"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_request_latency_ms",
			Help:    "Latency of book and analytics operations served over HTTP",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"operation"}),
	}

	toRegister := []prometheus.Collector{
		c.bookUpdates, c.droppedEntries, c.midPrice, c.spreadBps, c.wideSpreads,
		c.volumeImbalance, c.depthScore, c.kyleLambda, c.liquidityScore, c.requestLatency,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, col := range toRegister {
		c.registry.MustRegister(col)
	}

	logger.Info().Msg("Prometheus metrics initialized")
	return c
}

func (c *Collector) ObserveBookUpdate(symbol, side string, received, accepted int, mid float64, hasMid bool) {
	c.bookUpdates.WithLabelValues(symbol, side).Inc()
	if dropped := received - accepted; dropped > 0 {
		c.droppedEntries.WithLabelValues(symbol, side).Add(float64(dropped))
	}
	if hasMid {
		c.midPrice.WithLabelValues(symbol).Set(mid)
	}
}

func (c *Collector) ObserveSpread(symbol string, m analytics.SpreadMetrics) {
	c.spreadBps.WithLabelValues(symbol).Set(m.SpreadBps)
	if m.IsWideSpread {
		c.wideSpreads.WithLabelValues(symbol).Inc()
	}
}

func (c *Collector) ObserveDepth(symbol string, m analytics.DepthMetrics) {
	c.volumeImbalance.WithLabelValues(symbol).Set(m.VolumeImbalance)
	c.depthScore.WithLabelValues(symbol).Set(m.LiquidityScore)
}

func (c *Collector) ObserveLiquidity(symbol string, m analytics.LiquidityMetrics) {
	c.kyleLambda.WithLabelValues(symbol).Set(m.KyleLambda)
	c.liquidityScore.WithLabelValues(symbol).Set(m.OverallLiquidityScore)
}

func (c *Collector) ObserveLatency(operation string, d time.Duration) {
	c.requestLatency.WithLabelValues(operation).Observe(float64(d.Nanoseconds()) / 1e6)
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

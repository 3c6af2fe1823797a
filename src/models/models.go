package models

import "orderbook-analytics/src/analytics"

type PriceLevelInput struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// UpdateSideRequest replaces one side of a book. An empty levels list clears it.
type UpdateSideRequest struct {
	Levels []PriceLevelInput `json:"levels"`
}

type QuoteInfo struct {
	BestBid  *float64 `json:"best_bid"`
	BestAsk  *float64 `json:"best_ask"`
	MidPrice *float64 `json:"mid_price"`
	Spread   *float64 `json:"spread"`
	Version  uint64   `json:"version"`
}

type UpdateSideResponse struct {
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Received int       `json:"received"`
	Accepted int       `json:"accepted"`
	Dropped  int       `json:"dropped"`
	Quote    QuoteInfo `json:"quote"`
}

type VWAPResponse struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	VWAP      float64 `json:"vwap"`
	Filled    float64 `json:"filled"`
	Remaining float64 `json:"remaining"`
}

type SlippageResponse struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	SlippageBps float64 `json:"slippage_bps"`
	SlippageAbs float64 `json:"slippage_abs"`
	VWAP        float64 `json:"vwap"`
	MidPrice    float64 `json:"mid_price"`
	Filled      float64 `json:"filled"`
}

type SpreadResponse struct {
	Symbol      string                  `json:"symbol"`
	Timestamp   int64                   `json:"timestamp"` // unix timestamp in milliseconds
	Metrics     analytics.SpreadMetrics `json:"metrics"`
	HistorySize int                     `json:"history_size"`
}

type SpreadStatisticsResponse struct {
	Symbol     string                      `json:"symbol"`
	Window     int                         `json:"window"`
	Statistics *analytics.SpreadStatistics `json:"statistics"` // null without history
}

type SpreadTrendResponse struct {
	Symbol  string          `json:"symbol"`
	Periods int             `json:"periods"`
	Trend   analytics.Trend `json:"trend"`
}

type DepthResponse struct {
	Symbol    string                 `json:"symbol"`
	Timestamp int64                  `json:"timestamp"` // unix timestamp in milliseconds
	Levels    int                    `json:"levels"`
	Metrics   analytics.DepthMetrics `json:"metrics"`
}

type ImbalanceResponse struct {
	Symbol     string          `json:"symbol"`
	Imbalances map[int]float64 `json:"imbalances"` // keyed by level count
}

type LiquiditySampleRequest struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

type LiquiditySampleResponse struct {
	Symbol        string `json:"symbol"`
	PriceSamples  int    `json:"price_samples"`
	VolumeSamples int    `json:"volume_samples"`
}

type LiquidityResponse struct {
	Symbol    string                     `json:"symbol"`
	Timestamp int64                      `json:"timestamp"` // unix timestamp in milliseconds
	Metrics   analytics.LiquidityMetrics `json:"metrics"`
}

type ImpactCurveResponse struct {
	Symbol            string                  `json:"symbol"`
	ReferenceQuantity float64                 `json:"reference_quantity"`
	Points            []analytics.ImpactPoint `json:"points"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Markets       int    `json:"markets"`
}

type MetricsResponse struct {
	Markets                  int      `json:"markets"`
	Symbols                  []string `json:"symbols"`
	BookUpdates              int64    `json:"book_updates"`
	EntriesDropped           int64    `json:"entries_dropped"`
	AnalyticsRequests        int64    `json:"analytics_requests"`
	LatencyP50Ms             float64  `json:"latency_p50_ms"`
	LatencyP99Ms             float64  `json:"latency_p99_ms"`
	LatencyP999Ms            float64  `json:"latency_p999_ms"`
	ThroughputRequestsPerSec float64  `json:"throughput_requests_per_sec"`
}

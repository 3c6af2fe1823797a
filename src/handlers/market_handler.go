package handlers

import (
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"orderbook-analytics/src/analytics"
	"orderbook-analytics/src/engine"
	"orderbook-analytics/src/market"
	"orderbook-analytics/src/models"
	"orderbook-analytics/src/telemetry"
)

const (
	defaultStatisticsWindow = 100
	defaultTrendPeriods     = 20
	defaultImbalanceLevels  = "5,10,20"
	defaultCurveQuantity    = 10000.0
	defaultCurvePoints      = 100
	maxCurvePoints          = 1000
)

type Options struct {
	DefaultDepth int
	MaxDepth     int
	MaxLatencies int
}

type MarketHandler struct {
	Registry          *market.Registry
	Telemetry         *telemetry.Collector
	StartTime         time.Time
	BookUpdates       int64
	EntriesDropped    int64
	AnalyticsRequests int64

	defaultDepth int
	maxDepth     int
	latencies    *analytics.Ring[time.Duration]
	latenciesMu  sync.RWMutex
}

func NewMarketHandler(registry *market.Registry, collector *telemetry.Collector, opts Options) *MarketHandler {
	if opts.DefaultDepth <= 0 {
		opts.DefaultDepth = 10
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1000
	}
	if opts.MaxLatencies <= 0 {
		opts.MaxLatencies = 10000
	}

	return &MarketHandler{
		Registry:     registry,
		Telemetry:    collector,
		StartTime:    time.Now(),
		defaultDepth: opts.DefaultDepth,
		maxDepth:     opts.MaxDepth,
		latencies:    analytics.NewRing[time.Duration](opts.MaxLatencies),
	}
}

func (h *MarketHandler) UpdateBids(c *fiber.Ctx) error {
	return h.updateSide(c, engine.SideBuy)
}

func (h *MarketHandler) UpdateAsks(c *fiber.Ctx) error {
	return h.updateSide(c, engine.SideSell)
}

func (h *MarketHandler) updateSide(c *fiber.Ctx, side engine.Side) error {
	symbol, err := symbolParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req models.UpdateSideRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	m := h.Registry.GetOrCreate(symbol)

	entries := make([]engine.Entry, len(req.Levels))
	for i, level := range req.Levels {
		entries[i] = engine.Entry{Price: level.Price, Quantity: level.Quantity}
	}

	startTime := time.Now()

	var accepted int
	sideName := "bids"
	if side == engine.SideBuy {
		accepted = m.Book.UpdateBids(entries)
	} else {
		sideName = "asks"
		accepted = m.Book.UpdateAsks(entries)
	}

	h.recordLatency("update_"+sideName, time.Since(startTime))

	dropped := len(entries) - accepted
	atomic.AddInt64(&h.BookUpdates, 1)
	atomic.AddInt64(&h.EntriesDropped, int64(dropped))

	q := m.Book.Quote()
	h.Telemetry.ObserveBookUpdate(m.Symbol, sideName, len(entries), accepted, q.MidPrice, q.HasMid)

	// edge case: dropped entries are not an error but worth surfacing
	if dropped > 0 {
		log.Warn().
			Str("symbol", m.Symbol).
			Str("side", sideName).
			Int("dropped", dropped).
			Str("ip", c.IP()).
			Msg("Book update dropped invalid entries")
	}

	return c.Status(fiber.StatusOK).JSON(models.UpdateSideResponse{
		Symbol:   m.Symbol,
		Side:     sideName,
		Received: len(entries),
		Accepted: accepted,
		Dropped:  dropped,
		Quote:    quoteInfo(q),
	})
}

func (h *MarketHandler) GetBook(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}

	depth := c.QueryInt("depth", h.defaultDepth)
	if depth <= 0 {
		depth = h.defaultDepth
	}

	// edge case: enforce maximum depth limit
	if depth > h.maxDepth {
		depth = h.maxDepth
	}

	return c.Status(fiber.StatusOK).JSON(m.Book.Summary(depth))
}

func (h *MarketHandler) GetVWAP(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	side, quantity, err := sideAndQuantity(c)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	result, err := m.Book.EstimateVWAP(quantity, side)
	h.recordLatency("vwap", time.Since(startTime))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.VWAPResponse{
		Symbol:    m.Symbol,
		Side:      string(side),
		Quantity:  quantity,
		VWAP:      result.VWAP,
		Filled:    result.Filled,
		Remaining: result.Remaining,
	})
}

func (h *MarketHandler) GetSlippage(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	side, quantity, err := sideAndQuantity(c)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	result, err := m.Book.EstimateSlippage(quantity, side)
	h.recordLatency("slippage", time.Since(startTime))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.SlippageResponse{
		Symbol:      m.Symbol,
		Side:        string(side),
		Quantity:    quantity,
		SlippageBps: result.SlippageBps,
		SlippageAbs: result.SlippageAbs,
		VWAP:        result.VWAP,
		MidPrice:    result.MidPrice,
		Filled:      result.Filled,
	})
}

func (h *MarketHandler) GetSpread(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	metrics := m.Spread.CalculateAllMetrics()
	h.recordLatency("spread", time.Since(startTime))
	h.Telemetry.ObserveSpread(m.Symbol, metrics)

	return c.Status(fiber.StatusOK).JSON(models.SpreadResponse{
		Symbol:      m.Symbol,
		Timestamp:   time.Now().UnixMilli(),
		Metrics:     metrics,
		HistorySize: m.Spread.HistoryLen(),
	})
}

func (h *MarketHandler) GetSpreadStatistics(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	window, err := queryInt(c, "window", defaultStatisticsWindow)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	stats, ok := m.Spread.CalculateSpreadStatistics(window)
	h.recordLatency("spread_statistics", time.Since(startTime))

	resp := models.SpreadStatisticsResponse{Symbol: m.Symbol, Window: window}
	if ok {
		resp.Statistics = &stats
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *MarketHandler) GetSpreadTrend(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	periods, err := queryInt(c, "periods", defaultTrendPeriods)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	trend := m.Spread.GetSpreadTrend(periods)
	h.recordLatency("spread_trend", time.Since(startTime))

	return c.Status(fiber.StatusOK).JSON(models.SpreadTrendResponse{
		Symbol:  m.Symbol,
		Periods: periods,
		Trend:   trend,
	})
}

func (h *MarketHandler) GetDepth(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	metrics := m.Depth.CalculateAllMetrics()
	h.recordLatency("depth", time.Since(startTime))
	h.Telemetry.ObserveDepth(m.Symbol, metrics)

	return c.Status(fiber.StatusOK).JSON(models.DepthResponse{
		Symbol:    m.Symbol,
		Timestamp: time.Now().UnixMilli(),
		Levels:    m.Depth.Levels(),
		Metrics:   metrics,
	})
}

func (h *MarketHandler) GetDepthImbalance(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	levels, err := parseLevelList(c.Query("levels", defaultImbalanceLevels), h.maxDepth)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	imbalances := m.Depth.CalculateVolumeImbalanceAtLevels(levels)
	h.recordLatency("depth_imbalance", time.Since(startTime))

	return c.Status(fiber.StatusOK).JSON(models.ImbalanceResponse{
		Symbol:     m.Symbol,
		Imbalances: imbalances,
	})
}

func (h *MarketHandler) AddLiquiditySample(c *fiber.Ctx) error {
	symbol, err := symbolParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req models.LiquiditySampleRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := validateLiquiditySample(&req); err != nil {
		return respondError(c, err)
	}

	m := h.Registry.GetOrCreate(symbol)
	m.Liquidity.UpdateHistory(req.Price, req.Volume)
	prices, volumes := m.Liquidity.HistoryLen()

	log.Debug().
		Str("symbol", m.Symbol).
		Float64("price", req.Price).
		Float64("volume", req.Volume).
		Int("samples", prices).
		Msg("Liquidity sample recorded")

	return c.Status(fiber.StatusCreated).JSON(models.LiquiditySampleResponse{
		Symbol:        m.Symbol,
		PriceSamples:  prices,
		VolumeSamples: volumes,
	})
}

func (h *MarketHandler) GetLiquidity(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}

	startTime := time.Now()
	metrics := m.Liquidity.CalculateAllMetrics()
	h.recordLatency("liquidity", time.Since(startTime))
	h.Telemetry.ObserveLiquidity(m.Symbol, metrics)

	return c.Status(fiber.StatusOK).JSON(models.LiquidityResponse{
		Symbol:    m.Symbol,
		Timestamp: time.Now().UnixMilli(),
		Metrics:   metrics,
	})
}

func (h *MarketHandler) GetImpactCurve(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	maxQuantity, err := queryFloat(c, "max_quantity", defaultCurveQuantity)
	if err != nil {
		return respondError(c, err)
	}
	points, err := queryInt(c, "points", defaultCurvePoints)
	if err != nil {
		return respondError(c, err)
	}
	if points > maxCurvePoints {
		points = maxCurvePoints
	}

	startTime := time.Now()
	curve := m.Liquidity.ImpactCurve(maxQuantity, points)
	h.recordLatency("impact_curve", time.Since(startTime))

	return c.Status(fiber.StatusOK).JSON(models.ImpactCurveResponse{
		Symbol:            m.Symbol,
		ReferenceQuantity: m.Liquidity.Config().ImpactQuantity,
		Points:            curve,
	})
}

func (h *MarketHandler) lookup(c *fiber.Ctx) (*market.Market, error) {
	symbol, err := symbolParam(c)
	if err != nil {
		return nil, err
	}
	m, ok := h.Registry.Get(symbol)
	if !ok {
		return nil, &MarketNotFoundError{Symbol: symbol}
	}
	return m, nil
}

// symbolParam unescapes and normalizes the :symbol route parameter.
func symbolParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("symbol"))
	if err != nil {
		return "", &ValidationError{Message: "Invalid request: malformed symbol"}
	}
	symbol := market.NormalizeSymbol(raw)
	if symbol == "" {
		return "", &ValidationError{Message: "Invalid request: symbol is required"}
	}
	return symbol, nil
}

func (h *MarketHandler) recordLatency(operation string, latency time.Duration) {
	atomic.AddInt64(&h.AnalyticsRequests, 1)
	h.Telemetry.ObserveLatency(operation, latency)

	h.latenciesMu.Lock()
	h.latencies.Push(latency)
	h.latenciesMu.Unlock()
}

func (h *MarketHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	latenciesCopy := h.latencies.Slice()
	h.latenciesMu.RUnlock()

	if len(latenciesCopy) == 0 {
		return 0, 0, 0
	}

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	return latencyAt(latenciesCopy, 0.50), latencyAt(latenciesCopy, 0.99), latencyAt(latenciesCopy, 0.999)
}

// latencyAt reads a nearest-rank percentile in milliseconds from sorted.
func latencyAt(sorted []time.Duration, p float64) float64 {
	index := int(float64(len(sorted)) * p)

	// edge case: ensure index is within bounds
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return float64(sorted[index].Nanoseconds()) / 1e6
}

func (h *MarketHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}

	requests := atomic.LoadInt64(&h.AnalyticsRequests)
	return float64(requests) / uptime
}

func sideAndQuantity(c *fiber.Ctx) (engine.Side, float64, error) {
	side, err := engine.ParseSide(c.Query("side"))
	if err != nil {
		return "", 0, err
	}
	quantity, err := positiveFloat(c.Query("quantity"), "quantity")
	if err != nil {
		return "", 0, err
	}
	return side, quantity, nil
}

func validateLiquiditySample(req *models.LiquiditySampleRequest) error {
	if !validFinite(req.Price) || req.Price <= 0 {
		return &ValidationError{Message: "Invalid sample: price must be positive"}
	}

	// edge case: zero volume is a valid quiet interval
	if !validFinite(req.Volume) || req.Volume < 0 {
		return &ValidationError{Message: "Invalid sample: volume must not be negative"}
	}

	return nil
}

func quoteInfo(q engine.Quote) models.QuoteInfo {
	info := models.QuoteInfo{Version: q.Version}
	if q.HasBid {
		info.BestBid = &q.BestBid
	}
	if q.HasAsk {
		info.BestAsk = &q.BestAsk
	}
	if q.HasMid {
		info.MidPrice = &q.MidPrice
	}
	if spread, ok := q.Spread(); ok {
		info.Spread = &spread
	}
	return info
}

package handlers

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"orderbook-analytics/src/models"
)

func (h *MarketHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
		Markets:       h.Registry.Len(),
	})
}

func (h *MarketHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()
	throughput := h.calculateThroughput()
	symbols := h.Registry.Symbols()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		Markets:                  len(symbols),
		Symbols:                  symbols,
		BookUpdates:              atomic.LoadInt64(&h.BookUpdates),
		EntriesDropped:           atomic.LoadInt64(&h.EntriesDropped),
		AnalyticsRequests:        atomic.LoadInt64(&h.AnalyticsRequests),
		LatencyP50Ms:             p50,
		LatencyP99Ms:             p99,
		LatencyP999Ms:            p999,
		ThroughputRequestsPerSec: throughput,
	})
}

package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"orderbook-analytics/src/config"
	"orderbook-analytics/src/handlers"
	"orderbook-analytics/src/middleware"
	"orderbook-analytics/src/telemetry"
)

// SetupRoutes mounts middleware and every endpoint. The returned
// ServiceAvailability lets the caller toggle maintenance mode at runtime.
func SetupRoutes(app *fiber.App, h *handlers.MarketHandler, cfg config.Config, collector *telemetry.Collector) *middleware.ServiceAvailability {
	serviceAvailability := middleware.NewServiceAvailability(cfg.Server.MaxConcurrentRequests, cfg.Server.MaintenanceMode)
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger(cfg.Server.RequestLogging))

	api := app.Group("/api/v1")

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		api.Use(rateLimiter.Middleware())
	}

	markets := api.Group("/markets/:symbol")

	markets.Put("/bids", h.UpdateBids)
	markets.Put("/asks", h.UpdateAsks)
	markets.Get("/book", h.GetBook)
	markets.Get("/vwap", h.GetVWAP)
	markets.Get("/slippage", h.GetSlippage)

	markets.Get("/spread", h.GetSpread)
	markets.Get("/spread/statistics", h.GetSpreadStatistics)
	markets.Get("/spread/trend", h.GetSpreadTrend)

	markets.Get("/depth", h.GetDepth)
	markets.Get("/depth/imbalance", h.GetDepthImbalance)

	markets.Post("/liquidity/history", h.AddLiquiditySample)
	markets.Get("/liquidity", h.GetLiquidity)
	markets.Get("/liquidity/impact-curve", h.GetImpactCurve)

	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", h.Metrics)
	app.Get("/metrics/prometheus", adaptor.HTTPHandler(collector.Handler()))

	return serviceAvailability
}

// Endpoints lists the registered routes for the startup log.
func Endpoints() []string {
	return []string{
		"PUT    /api/v1/markets/:symbol/bids",
		"PUT    /api/v1/markets/:symbol/asks",
		"GET    /api/v1/markets/:symbol/book",
		"GET    /api/v1/markets/:symbol/vwap",
		"GET    /api/v1/markets/:symbol/slippage",
		"GET    /api/v1/markets/:symbol/spread",
		"GET    /api/v1/markets/:symbol/spread/statistics",
		"GET    /api/v1/markets/:symbol/spread/trend",
		"GET    /api/v1/markets/:symbol/depth",
		"GET    /api/v1/markets/:symbol/depth/imbalance",
		"POST   /api/v1/markets/:symbol/liquidity/history",
		"GET    /api/v1/markets/:symbol/liquidity",
		"GET    /api/v1/markets/:symbol/liquidity/impact-curve",
		"GET    /health",
		"GET    /metrics",
		"GET    /metrics/prometheus",
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	zlog "github.com/rs/zerolog/log"

	"orderbook-analytics/src/analytics"
	"orderbook-analytics/src/config"
	"orderbook-analytics/src/handlers"
	"orderbook-analytics/src/logger"
	"orderbook-analytics/src/market"
	"orderbook-analytics/src/routes"
	"orderbook-analytics/src/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.InitLogger(cfg.Logging)
	log := logger.GetLogger()

	log.Info().Msg("Initializing Order Book Analytics")

	collector := telemetry.New(log)
	registry := market.NewRegistry(market.Settings{
		DepthLevels: cfg.Analytics.DepthLevels,
		Liquidity: analytics.LiquidityConfig{
			StressVolume:   cfg.Analytics.StressVolume,
			ImpactQuantity: cfg.Analytics.ImpactQuantity,
		},
	})

	// edge case: pre-create the default market so reads succeed before the first update
	if cfg.Book.DefaultSymbol != "" {
		registry.GetOrCreate(cfg.Book.DefaultSymbol)
	}

	marketHandler := handlers.NewMarketHandler(registry, collector, handlers.Options{
		DefaultDepth: cfg.Book.DefaultDepth,
		MaxDepth:     cfg.Book.MaxDepth,
		MaxLatencies: cfg.Metrics.MaxLatencies,
	})

	app := fiber.New(fiber.Config{
		// handler strings outlive the request as registry keys and metric labels
		Immutable: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, marketHandler, cfg, collector)

	port := ":" + cfg.Server.Port

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			errStr := err.Error()
			if errStr != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Strs("markets", registry.Symbols()).
			Msg("Order Book Analytics started")

		log.Info().
			Strs("endpoints", routes.Endpoints()).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.Server.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}

	logger.CloseLogger()
}

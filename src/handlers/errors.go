package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"orderbook-analytics/src/engine"
	"orderbook-analytics/src/models"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type MarketNotFoundError struct {
	Symbol string
}

func (e *MarketNotFoundError) Error() string {
	return "Market not found: " + e.Symbol
}

// respondError maps handler errors onto the JSON error envelope.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validationErr *ValidationError
		argumentErr   *engine.InvalidArgumentError
		notFoundErr   *MarketNotFoundError
	)

	status := fiber.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &argumentErr):
		status = fiber.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = fiber.StatusNotFound
	}

	event := log.Warn()
	if status == fiber.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(err).
		Str("path", c.Path()).
		Str("ip", c.IP()).
		Int("status", status).
		Msg("Request failed")

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "Internal server error"
	}
	return c.Status(status).JSON(models.ErrorResponse{Error: message})
}

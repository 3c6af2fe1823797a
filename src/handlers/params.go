package handlers

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

func positiveFloat(raw, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &ValidationError{Message: "Invalid request: " + name + " must be a positive number"}
	}
	return v, nil
}

// queryInt reads a positive integer query parameter, falling back to def when
// the parameter is absent.
func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, &ValidationError{Message: "Invalid request: " + name + " must be a positive integer"}
	}
	return v, nil
}

func queryFloat(c *fiber.Ctx, name string, def float64) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return positiveFloat(raw, name)
}

func parseLevelList(raw string, maxLevels int) ([]int, error) {
	parts := strings.Split(raw, ",")
	levels := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v <= 0 {
			return nil, &ValidationError{Message: "Invalid request: levels must be a comma separated list of positive integers"}
		}
		// edge case: enforce maximum depth limit
		if v > maxLevels {
			v = maxLevels
		}
		levels = append(levels, v)
	}
	return levels, nil
}

func validFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

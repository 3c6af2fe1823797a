package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog/log"
)

type window struct {
	number int64
	count  int
}

// RateLimiter is a fixed-window counter per client.
type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	clients        map[string]*window
	mu             sync.Mutex
	now            func() time.Time
}

func NewRateLimiter(maxRequests int, windowDuration time.Duration) *RateLimiter {
	if windowDuration <= 0 {
		windowDuration = time.Second
	}
	return &RateLimiter{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		clients:        make(map[string]*window),
		now:            time.Now,
	}
}

func (rl *RateLimiter) clientID(c *fiber.Ctx) string {
	ip := c.Get("X-Forwarded-For")
	if ip == "" {
		ip = c.Get("X-Real-IP")
	}
	if ip == "" {
		ip = c.IP()
	}
	// header values alias the request buffer; the id is kept as a map key
	return utils.CopyString(ip)
}

func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	current := rl.now().UnixNano() / rl.windowDuration.Nanoseconds()

	w, exists := rl.clients[clientID]
	if !exists || w.number != current {
		// edge case: a new window evicts stale windows of idle clients
		if !exists {
			rl.evictStale(current)
		}
		rl.clients[clientID] = &window{number: current, count: 1}
		return true
	}

	if w.count >= rl.maxRequests {
		return false
	}
	w.count++
	return true
}

// evictStale must be called with mu held.
func (rl *RateLimiter) evictStale(current int64) {
	for id, w := range rl.clients {
		if w.number < current {
			delete(rl.clients, id)
		}
	}
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := rl.clientID(c)

		if !rl.Allow(clientID) {
			log.Warn().
				Str("client_ip", clientID).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Set("X-RateLimit-Window", rl.windowDuration.String())

		return c.Next()
	}
}

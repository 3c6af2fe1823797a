package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func okApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	for _, h := range handlers {
		app.Use(h)
	}
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/v1/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	return app
}

// TestRateLimiterWindow tests the fixed window counter with a controlled clock
func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("First two requests should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("Third request in the same window should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("Clients are limited independently")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("A new window should reset the count")
	}
}

// TestRateLimiterSubSecondWindow tests windows shorter than one second
func TestRateLimiterSubSecondWindow(t *testing.T) {
	rl := NewRateLimiter(1, 100*time.Millisecond)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || rl.Allow("a") {
		t.Fatal("Expected exactly one request per window")
	}
	now = now.Add(100 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatal("Expected the next window to allow a request")
	}
}

// TestRateLimiterEvictsIdleClients tests that stale windows do not accumulate
func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	now = now.Add(5 * time.Second)
	rl.Allow("c")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 1 {
		t.Errorf("Expected idle clients evicted, got %d entries", len(rl.clients))
	}
}

// TestRateLimiterMiddleware tests the 429 response and headers
func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	app := okApp(rl.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Limit") != "1" {
		t.Errorf("Expected rate limit header, got %q", resp.Header.Get("X-RateLimit-Limit"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
}

// TestRateLimiterForwardedClients tests that each forwarded client keeps its own counter across requests
func TestRateLimiterForwardedClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return time.Unix(1000, 0) }
	app := okApp(rl.Middleware())

	clients := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for _, ip := range clients {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected first request from %s to pass, got %d", ip, resp.StatusCode)
		}
	}

	rl.mu.Lock()
	if len(rl.clients) != len(clients) {
		t.Errorf("Expected %d tracked clients, got %d", len(clients), len(rl.clients))
	}
	for _, ip := range clients {
		if _, ok := rl.clients[ip]; !ok {
			t.Errorf("Client %s lost its rate limit window", ip)
		}
	}
	rl.mu.Unlock()

	for _, ip := range clients {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Errorf("Expected second request from %s to be limited, got %d", ip, resp.StatusCode)
		}
	}
}

// TestServiceAvailabilityMaintenance tests 503 during maintenance with health exempt
func TestServiceAvailabilityMaintenance(t *testing.T) {
	sa := NewServiceAvailability(0, true)
	app := okApp(sa.Middleware())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health check should stay available, got %d", resp.StatusCode)
	}

	sa.SetMaintenanceMode(false)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 after maintenance, got %d", resp.StatusCode)
	}
}

// TestServiceAvailabilityOverload tests the in-flight request limit
func TestServiceAvailabilityOverload(t *testing.T) {
	sa := NewServiceAvailability(1, false)
	release := make(chan struct{})
	entered := make(chan struct{})

	app := fiber.New()
	app.Use(sa.Middleware())
	app.Get("/slow", func(c *fiber.Ctx) error {
		close(entered)
		<-release
		return c.SendString("done")
	})
	app.Get("/fast", func(c *fiber.Ctx) error { return c.SendString("fast") })

	done := make(chan int, 1)
	go func() {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/slow", nil), -1)
		if err != nil {
			done <- 0
			return
		}
		done <- resp.StatusCode
	}()
	<-entered

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fast", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 while at capacity, got %d", resp.StatusCode)
	}
	if sa.InFlightRequests() != 1 {
		t.Errorf("Rejected requests must not stay counted, got %d in flight", sa.InFlightRequests())
	}

	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("Expected slow request to succeed, got %d", code)
	}
	if sa.InFlightRequests() != 0 {
		t.Errorf("Expected no requests in flight, got %d", sa.InFlightRequests())
	}
}

// TestRequestLoggerRequestID tests request id generation and propagation
func TestRequestLoggerRequestID(t *testing.T) {
	app := okApp(RequestLogger(false))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if len(resp.Header.Get(RequestIDHeader)) != 36 {
		t.Errorf("Expected generated uuid request id, got %q", resp.Header.Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.Header.Get(RequestIDHeader) != "abc-123" {
		t.Errorf("Expected caller request id echoed, got %q", resp.Header.Get(RequestIDHeader))
	}
}

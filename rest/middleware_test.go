package rest

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"sms-gateway-api/apikey"
	"sms-gateway-api/ratelimit"
	"sms-gateway-api/worker"
)

func TestAuthMiddleware_RateLimitHeaders(t *testing.T) {
	setupTestDB(t)
	defer teardownTestDB()

	limit := 2
	created, err := apikey.Create("limited key", &limit)
	if err != nil {
		t.Fatalf("Failed to create test api key: %v", err)
	}

	deps := &Deps{
		RateLimiter: ratelimit.New(),
		Monitor:     worker.NewStatusMonitor(nil, 0),
	}

	app := fiber.New()
	app.Get("/api/v1/ping", AuthMiddleware(deps), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	doRequest := func() {
		req := httptest.NewRequest("GET", "/api/v1/ping", nil)
		req.Header.Set("X-API-Key", created.Secret)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to perform request: %v", err)
		}
		defer resp.Body.Close()
		if got := resp.Header.Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("Expected X-RateLimit-Limit=2, got %q", got)
		}
	}

	doRequest()
	doRequest()

	req := httptest.NewRequest("GET", "/api/v1/ping", nil)
	req.Header.Set("X-API-Key", created.Secret)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("Expected status 429 after exhausting quota, got %d", resp.StatusCode)
	}
}

func TestAuthMiddleware_MultipleKeysRejected(t *testing.T) {
	setupTestDB(t)
	defer teardownTestDB()

	deps := &Deps{RateLimiter: ratelimit.New(), Monitor: worker.NewStatusMonitor(nil, 0)}
	app := fiber.New()
	app.Get("/api/v1/ping", AuthMiddleware(deps), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/ping", nil)
	req.Header.Add("X-API-Key", "sk_live_a")
	req.Header.Add("X-API-Key", "sk_live_b")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected status 401 for duplicate api key headers, got %d", resp.StatusCode)
	}
}

package rest

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"sms-gateway-api/apikey"
	"sms-gateway-api/db"
)

const apiKeyHeader = "X-API-Key"

// AuthMiddleware gates every authenticated request: extract the API key,
// verify it, enforce the per-key hourly quota, and stamp the
// X-RateLimit-* headers on every authenticated response.
func AuthMiddleware(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		values := c.Context().Request.Header.PeekAll(apiKeyHeader)
		if len(values) == 0 || len(strings.TrimSpace(string(values[0]))) == 0 {
			return ReturnUnauthorized(c, "Missing API key")
		}
		if len(values) > 1 {
			return ReturnUnauthorized(c, "Invalid API key")
		}

		key, err := apikey.Verify(string(values[0]))
		if err != nil {
			return ReturnUnauthorized(c, "Invalid API key")
		}

		result := deps.RateLimiter.Allow(key.ID, key.RateLimit, time.Now().UTC())
		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetUnix, 10))
		if !result.Allowed {
			return ReturnTooManyRequests(c, "Rate limit exceeded")
		}

		c.Locals("apiKey", key)

		go func(id string) {
			_ = db.TouchApiKeyLastUsed(id)
		}(key.ID)

		return c.Next()
	}
}

// apiKeyFromCtx retrieves the ApiKey stashed by AuthMiddleware.
func apiKeyFromCtx(c *fiber.Ctx) *db.ApiKey {
	key, _ := c.Locals("apiKey").(*db.ApiKey)
	return key
}

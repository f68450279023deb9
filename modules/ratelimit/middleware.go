package ratelimit

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// KeyFunc extracts the rate limit key from a request. An empty key falls back
// to the client IP.
type KeyFunc func(c *fiber.Ctx) string

// Handler returns fiber middleware that enforces limiter per key. Limiter
// failures let the request through and are reported in X-RateLimit-Error.
func Handler(limiter Allower, key KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		k := key(c)
		if k == "" {
			k = "ip:" + c.IP()
		}

		result, err := limiter.Allow(c.UserContext(), k)
		if err != nil {
			log.Printf("[ratelimit] Check failed, allowing request: %v", err)
			c.Set("X-RateLimit-Error", "rate limiter unavailable")
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fmt.Sprintf("Too many requests. Please retry after %d seconds.", retryAfter),
			})
		}
		return c.Next()
	}
}

// LocalsKey builds a KeyFunc from a string stored in c.Locals under name.
func LocalsKey(name string) KeyFunc {
	return func(c *fiber.Ctx) string {
		if v, ok := c.Locals(name).(string); ok && v != "" {
			return "account:" + v
		}
		return ""
	}
}

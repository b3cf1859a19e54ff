package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on successful GET responses that did not set one.
// Summaries depend on a live upstream dataset, so they get a short public lifetime.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		status := c.Response().StatusCode()
		var ttl string

		switch {
		case status >= 400:
			ttl = "no-store"

		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics" || path == "/v1/runs":
			ttl = "no-cache"

		case strings.HasSuffix(path, "/hex-summary"):
			ttl = "public, max-age=300"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}

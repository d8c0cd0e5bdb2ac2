package middleware

import (
	"github.com/gofiber/fiber/v2"

	"blobvault/internal/service"
)

const (
	// APIKeyHeader is the primary credential carrier.
	APIKeyHeader = "X-API-Key"
	// APIKeyQueryParam is the fallback carrier; the header wins when both
	// are present.
	APIKeyQueryParam = "api_key"
	// APIKeyLocalKey is the key under which the authenticated key record is
	// stored in Fiber's context locals.
	APIKeyLocalKey = "api_key_record"
)

// APIKeyAuth authenticates requests against the key service.
//
// A request with no credential at all is unauthenticated (401); a request
// presenting a credential that matches no active key is forbidden (403).
// Clients distinguish "you forgot the key" from "your key is dead".
func APIKeyAuth(keys service.APIKeyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(APIKeyHeader)
		if token == "" {
			token = c.Query(APIKeyQueryParam)
		}

		if token == "" {
			return authError(c, fiber.StatusUnauthorized, "MISSING_API_KEY", "API key is required")
		}

		key, err := keys.Verify(c.UserContext(), token)
		if err != nil {
			return authError(c, fiber.StatusForbidden, "INVALID_API_KEY", "invalid or revoked API key")
		}

		c.Locals(APIKeyLocalKey, key)
		return c.Next()
	}
}

// authError mirrors the handler package's error envelope. Middleware cannot
// import handler (it would cycle), so the shape is duplicated here.
func authError(c *fiber.Ctx, status int, code, message string) error {
	rid, _ := c.Locals(RequestIDLocalKey).(string)
	return c.Status(status).JSON(fiber.Map{
		"request_id": rid,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

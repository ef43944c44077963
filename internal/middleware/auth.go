package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/security"
)

const claimsKey = "claims"

// RequireAuth accepts a bearer token, or a token query parameter for
// websocket upgrades where browsers cannot set headers.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return deny(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing authentication token")
		}

		claims, err := security.ValidateJWT(token, secret)
		if err != nil {
			return deny(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return deny(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing authentication token")
		}
		if !claims.HasRole(roles...) {
			return deny(c, fiber.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
		}
		return c.Next()
	}
}

// ClaimsFrom returns the authenticated claims, or nil.
func ClaimsFrom(c *fiber.Ctx) *security.Claims {
	claims, _ := c.Locals(claimsKey).(*security.Claims)
	return claims
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func deny(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

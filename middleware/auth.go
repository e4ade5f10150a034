package middleware

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity the auth gateway attaches
// as headers. user_id is stored as uint so handlers can use it directly as
// a foreign key.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawUserID := c.Get("X-User-ID")
		if rawUserID == "" {
			log.Printf("[USER_CTX] X-User-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		userID, err := strconv.ParseUint(rawUserID, 10, 64)
		if err != nil || userID == 0 {
			log.Printf("[USER_CTX] malformed X-User-ID %q on %s", rawUserID, c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "malformed X-User-ID header",
			})
		}

		var roles []string
		if rolesStr := c.Get("X-User-Roles"); rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		c.Locals("user_id", uint(userID))
		c.Locals("user_roles", roles)

		return c.Next()
	}
}

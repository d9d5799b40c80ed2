package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LocalsUserID is the request-locals key under which Middleware stores
// the authenticated user id. Handlers that cannot go through
// CurrentUserID (websocket upgrades carry locals on the conn, not the
// ctx) read it by this name.
const LocalsUserID = "user_id"

// Middleware validates the bearer token and stores the caller's user id
// in request locals. Requests without an identity never reach the core.
func Middleware(v *Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		token, ok := strings.CutPrefix(hdr, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		userID, err := v.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(LocalsUserID, userID)
		return c.Next()
	}
}

// CurrentUserID returns the authenticated identity set by Middleware.
func CurrentUserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(LocalsUserID).(string)
	return id, ok && id != ""
}

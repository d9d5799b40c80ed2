package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestMiddlewareStoresIdentityUnderLocalsUserID(t *testing.T) {
	v, err := NewValidator("secret")
	require.NoError(t, err)

	app := fiber.New()
	app.Use(Middleware(v))
	app.Get("/", func(c *fiber.Ctx) error {
		// CurrentUserID and the raw LocalsUserID key must agree, since
		// websocket handlers read the conn locals by key
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		assert.Equal(t, "u1", id)
		assert.Equal(t, "u1", c.Locals(LocalsUserID))
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "u1"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMiddlewareRejectsMissingAndInvalidTokens(t *testing.T) {
	v, err := NewValidator("secret")
	require.NoError(t, err)

	app := fiber.New()
	app.Use(Middleware(v))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "u1"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TokenValidator interface {
	Validate(token string) (string, error)
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"status":  "error",
		"code":    "UNAUTHORIZED",
		"message": msg,
	})
}

// JWTAuth requires a bearer token and stores its subject under "user_id".
func JWTAuth(v TokenValidator, log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return unauthorized(c, "missing authorization header")
		}
		uid, err := v.Validate(parts[1])
		if err != nil {
			log.Debugw("token rejected", "path", c.Path(), "error", err)
			return unauthorized(c, "invalid token")
		}
		c.Locals("user_id", uid)
		return c.Next()
	}
}

// UserID returns the authenticated subject set by JWTAuth.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

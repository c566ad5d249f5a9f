package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"leadrelay/internal/config"
)

// Session keys shared with the auth handler.
const (
	SessionEmailKey    = "staff_email"
	SessionRedirectKey = "redirect_after_login"
)

// AuthMiddleware guards staff routes using the login session.
type AuthMiddleware struct {
	cfg *config.Config
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

// RequireStaff ensures the session belongs to an allow-listed staff email.
// HTML requests are redirected to /login; API requests get a JSON 401 or 403.
func (m *AuthMiddleware) RequireStaff(c fiber.Ctx) error {
	api := isAPIRequest(c)

	var email string
	sess := session.FromContext(c)
	if sess != nil {
		email, _ = sess.Get(SessionEmailKey).(string)
	}

	if email == "" {
		if api {
			return deny(c, fiber.StatusUnauthorized, "authentication required")
		}
		if sess != nil {
			sess.Set(SessionRedirectKey, c.OriginalURL())
		}
		return c.Redirect().To("/login")
	}

	if !m.cfg.IsStaffEmail(email) {
		if api {
			return deny(c, fiber.StatusForbidden, "staff access required")
		}
		return fiber.NewError(fiber.StatusForbidden, "Staff access required")
	}

	c.Locals(SessionEmailKey, email)
	return c.Next()
}

// isAPIRequest reports whether the request expects JSON rather than HTML.
func isAPIRequest(c fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/functions/")
}

func deny(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

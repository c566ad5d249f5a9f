package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"leadrelay/internal/config"
)

// newTestApp mounts RequireStaff behind a session middleware. A request
// header stands in for a completed OIDC login.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		AdminEmails:      []string{"owner@example.com"},
		AdminEmailDomain: "agency.example",
	}
	m := NewAuthMiddleware(cfg)

	app := fiber.New()
	sessionMiddleware, _ := session.NewWithStore(session.Config{})
	app.Use(sessionMiddleware)
	app.Use(func(c fiber.Ctx) error {
		if email := c.Get("X-Test-Email"); email != "" {
			session.FromContext(c).Set(SessionEmailKey, email)
		}
		return c.Next()
	})

	ok := func(c fiber.Ctx) error {
		email, _ := c.Locals(SessionEmailKey).(string)
		return c.SendString(email)
	}
	app.Get("/admin", m.RequireStaff, ok)
	app.Get("/api/admin/quotes", m.RequireStaff, ok)
	return app
}

func TestRequireStaff(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		email        string
		wantStatus   int // 0 means any redirect
		wantLocation string
	}{
		{"html anonymous redirects", "/admin", "", 0, "/login"},
		{"api anonymous is 401", "/api/admin/quotes", "", fiber.StatusUnauthorized, ""},
		{"html non-staff is 403", "/admin", "someone@gmail.com", fiber.StatusForbidden, ""},
		{"api non-staff is 403", "/api/admin/quotes", "someone@gmail.com", fiber.StatusForbidden, ""},
		{"listed email", "/admin", "Owner@Example.com", fiber.StatusOK, ""},
		{"staff domain", "/api/admin/quotes", "agent@agency.example", fiber.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.email != "" {
				req.Header.Set("X-Test-Email", tt.email)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantStatus == 0 {
				if resp.StatusCode < 300 || resp.StatusCode > 399 {
					t.Errorf("status = %d, want a redirect", resp.StatusCode)
				}
			} else if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantLocation != "" && resp.Header.Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", resp.Header.Get("Location"), tt.wantLocation)
			}
		})
	}
}

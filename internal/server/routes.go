package server

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadrelay/internal/feed"
	"leadrelay/internal/handlers"
	"leadrelay/internal/handlers/api"
	"leadrelay/internal/middleware"
	"leadrelay/internal/quotes"
)

// Store is the storage the routes read and write.
type Store interface {
	api.AdminStore
	api.SignalStore
	api.Pinger
	handlers.DashboardStore
}

// Deps are the services routes are wired to.
type Deps struct {
	Store Store
	Relay *quotes.Relay
	Feed  *feed.Proxy
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(ctx context.Context, deps Deps) error {
	router := deps.Relay.Router()

	// Initialize handlers
	quoteHandler := api.NewQuoteHandler(deps.Relay)
	signalHandler := api.NewSignalHandler(deps.Store)
	feedHandler := api.NewFeedHandler(deps.Feed)
	healthHandler := api.NewHealthHandler(deps.Store)

	// Ops
	s.App.Get("/healthz", healthHandler.Healthz)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Public functions called by the site
	public := s.App.Group("/api")
	public.Post("/quotes", quoteHandler.Submit)
	public.Post("/signals/classify", signalHandler.Classify)
	public.Get("/rss", feedHandler.Get)

	// Paths the site used before the API was consolidated
	functions := s.App.Group("/functions/v1")
	functions.Post("/submit-quote", quoteHandler.Submit)
	functions.Post("/classify-signal", signalHandler.Classify)
	functions.Get("/rss-proxy", feedHandler.Get)

	// Staff routes exist only when OIDC is configured
	if !s.Cfg.IsOIDCEnabled() {
		log.Println("OIDC not configured: staff dashboard and admin API are disabled")
		return nil
	}

	authHandler, err := handlers.NewAuthHandler(ctx, s.Cfg)
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewAuthMiddleware(s.Cfg)
	adminHandler := api.NewAdminHandler(deps.Store, router)
	dashboardHandler := handlers.NewDashboardHandler(deps.Store, router, s.Cfg)

	s.App.Get("/login", authHandler.LoginPage)
	s.App.Get("/auth/login", authHandler.Login)
	s.App.Get("/auth/callback", authHandler.Callback)
	s.App.Get("/auth/logout", authHandler.Logout)

	s.App.Get("/", func(c fiber.Ctx) error {
		return c.Redirect().To("/admin")
	})
	s.App.Get("/admin", authMiddleware.RequireStaff, dashboardHandler.Index)
	s.App.Get("/admin/quotes/:type/:id", authMiddleware.RequireStaff, dashboardHandler.Show)

	admin := s.App.Group("/api/admin", authMiddleware.RequireStaff)
	admin.Get("/quotes", adminHandler.ListQuotes)
	admin.Get("/quotes/:type/:id", adminHandler.GetQuote)
	admin.Patch("/quotes/:type/:id/status", adminHandler.UpdateStatus)
	admin.Get("/audit", adminHandler.ListAudit)
	admin.Get("/signals", signalHandler.List)

	return nil
}

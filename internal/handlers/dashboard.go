package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"leadrelay/internal/config"
	"leadrelay/internal/db"
	"leadrelay/internal/models"
	"leadrelay/internal/quotes"
)

// DashboardStore is the storage read by the staff dashboard.
type DashboardStore interface {
	ListQuotes(ctx context.Context, table, status string, limit int) ([]models.QuoteSubmission, error)
	GetQuote(ctx context.Context, table string, id uuid.UUID) (*models.QuoteSubmission, error)
	CountQuotesByStatus(ctx context.Context, tables []string) ([]models.TableCount, error)
}

// DashboardHandler renders the staff HTML dashboard.
type DashboardHandler struct {
	store  DashboardStore
	router *quotes.Router
	cfg    *config.Config
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(store DashboardStore, router *quotes.Router, cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{store: store, router: router, cfg: cfg}
}

// TypeSummary is one row of the per-type counts table.
type TypeSummary struct {
	Type     string
	Table    string
	Total    int64
	ByStatus map[string]int64
	Selected bool
}

// Index lists recent submissions for one quote type with per-type counts.
func (h *DashboardHandler) Index(c fiber.Ctx) error {
	route, err := h.router.Resolve(c.Query("type", "auto"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	status := c.Query("status")
	if status != "" && !models.IsValidQuoteStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "Unknown status")
	}

	list, err := h.store.ListQuotes(c.Context(), route.Table, status, 100)
	if err != nil {
		slog.Error("failed to list quotes for dashboard", "table", route.Table, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load submissions")
	}

	counts, err := h.store.CountQuotesByStatus(c.Context(), h.router.Tables())
	if err != nil {
		slog.Error("failed to count quotes for dashboard", "error", err)
		counts = nil
	}

	email, _ := c.Locals("staff_email").(string)

	return c.Render("dashboard", MergeBranding(fiber.Map{
		"Title":      "Quote requests",
		"StaffEmail": email,
		"Route":      route,
		"Status":     status,
		"Statuses":   models.QuoteStatuses,
		"Quotes":     list,
		"Summaries":  summarize(h.router, counts, route.Type),
	}, h.cfg))
}

// Show renders one submission with its payload and metadata.
func (h *DashboardHandler) Show(c fiber.Ctx) error {
	route, err := h.router.Resolve(c.Params("type"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Unknown quote type")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Quote not found")
	}

	q, err := h.store.GetQuote(c.Context(), route.Table, id)
	if err != nil {
		if errors.Is(err, db.ErrQuoteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Quote not found")
		}
		slog.Error("failed to load quote", "table", route.Table, "id", id, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load submission")
	}

	email, _ := c.Locals("staff_email").(string)

	return c.Render("quote", MergeBranding(fiber.Map{
		"Title":      q.DisplayName(),
		"StaffEmail": email,
		"Route":      route,
		"Quote":      q,
		"Statuses":   models.QuoteStatuses,
	}, h.cfg))
}

// summarize folds table counts into one row per routed quote type.
func summarize(router *quotes.Router, counts []models.TableCount, selected string) []TypeSummary {
	byTable := make(map[string]map[string]int64)
	for _, tc := range counts {
		if byTable[tc.Table] == nil {
			byTable[tc.Table] = make(map[string]int64)
		}
		byTable[tc.Table][tc.Status] += tc.Count
	}

	types := router.Types()
	out := make([]TypeSummary, 0, len(types))
	for _, t := range types {
		route, _ := router.Resolve(t)
		s := TypeSummary{
			Type:     route.Type,
			Table:    route.Table,
			ByStatus: byTable[route.Table],
			Selected: route.Type == selected,
		}
		for _, n := range s.ByStatus {
			s.Total += n
		}
		out = append(out, s)
	}
	return out
}

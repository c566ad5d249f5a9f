package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"leadrelay/internal/db"
	"leadrelay/internal/models"
	"leadrelay/internal/quotes"
	"leadrelay/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AdminStore is the storage used by the staff API.
type AdminStore interface {
	GetQuote(ctx context.Context, table string, id uuid.UUID) (*models.QuoteSubmission, error)
	ListQuotes(ctx context.Context, table, status string, limit int) ([]models.QuoteSubmission, error)
	UpdateQuoteStatus(ctx context.Context, table string, id uuid.UUID, status string) error
	ListAuditEvents(ctx context.Context, eventType string, limit int) ([]models.AuditEvent, error)
	InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error
}

// AdminHandler serves the staff JSON API.
type AdminHandler struct {
	store  AdminStore
	router *quotes.Router
}

// NewAdminHandler creates a new staff API handler.
func NewAdminHandler(store AdminStore, router *quotes.Router) *AdminHandler {
	return &AdminHandler{store: store, router: router}
}

// ListQuotes returns recent submissions of one quote type.
func (h *AdminHandler) ListQuotes(c fiber.Ctx) error {
	route, err := h.router.Resolve(c.Query("type", "auto"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	status := c.Query("status")
	if status != "" && !models.IsValidQuoteStatus(status) {
		return jsonError(c, fiber.StatusBadRequest, "unknown status")
	}

	list, err := h.store.ListQuotes(c.Context(), route.Table, status, queryLimit(c))
	if err != nil {
		slog.Error("failed to list quotes", "table", route.Table, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch quotes")
	}

	return jsonSuccess(c, list)
}

// GetQuote returns one stored submission.
func (h *AdminHandler) GetQuote(c fiber.Ctx) error {
	route, id, err := h.quoteParams(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	q, err := h.store.GetQuote(c.Context(), route.Table, id)
	if err != nil {
		if errors.Is(err, db.ErrQuoteNotFound) {
			return jsonError(c, fiber.StatusNotFound, "quote not found")
		}
		slog.Error("failed to fetch quote", "table", route.Table, "id", id, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch quote")
	}

	return jsonSuccess(c, q)
}

// UpdateStatus moves a submission through the sales pipeline.
func (h *AdminHandler) UpdateStatus(c fiber.Ctx) error {
	route, id, err := h.quoteParams(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	var req models.StatusUpdateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validation.FirstError(err))
	}

	if err := h.store.UpdateQuoteStatus(c.Context(), route.Table, id, req.Status); err != nil {
		if errors.Is(err, db.ErrQuoteNotFound) {
			return jsonError(c, fiber.StatusNotFound, "quote not found")
		}
		slog.Error("failed to update quote status", "table", route.Table, "id", id, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to update status")
	}

	actor, _ := c.Locals("staff_email").(string)
	event := &models.AuditEvent{
		EventType: models.AuditQuoteStatusChanged,
		QuoteType: route.Type,
		TableName: route.Table,
		RecordID:  &id,
		IPAddress: c.IP(),
		Actor:     actor,
		Detail:    map[string]any{"status": req.Status},
	}
	if err := h.store.InsertAuditEvent(c.Context(), event); err != nil {
		slog.Error("failed to store audit event", "event", event.EventType, "error", err)
	}

	return jsonSuccess(c, fiber.Map{"id": id, "status": req.Status})
}

// ListAudit returns recent audit events.
func (h *AdminHandler) ListAudit(c fiber.Ctx) error {
	events, err := h.store.ListAuditEvents(c.Context(), c.Query("event_type"), queryLimit(c))
	if err != nil {
		slog.Error("failed to list audit events", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch audit events")
	}
	return jsonSuccess(c, events)
}

func (h *AdminHandler) quoteParams(c fiber.Ctx) (quotes.Route, uuid.UUID, error) {
	route, err := h.router.Resolve(c.Params("type"))
	if err != nil {
		return quotes.Route{}, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return quotes.Route{}, uuid.Nil, errors.New("invalid quote id")
	}
	return route, id, nil
}

// queryLimit reads ?limit= clamped to [1, maxListLimit].
func queryLimit(c fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

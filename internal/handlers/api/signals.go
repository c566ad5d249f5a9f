package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"leadrelay/internal/metrics"
	"leadrelay/internal/models"
	"leadrelay/internal/signals"
	"leadrelay/internal/validation"
)

// SignalStore persists classified signals.
type SignalStore interface {
	InsertSignalEvent(ctx context.Context, s *models.StoredSignal) error
	ListSignalEvents(ctx context.Context, label string, limit int) ([]models.StoredSignal, error)
}

// SignalHandler classifies visitor signals.
type SignalHandler struct {
	store SignalStore
}

// NewSignalHandler creates a new signal handler. store may be nil.
func NewSignalHandler(store SignalStore) *SignalHandler {
	return &SignalHandler{store: store}
}

// Classify assigns a readiness label to one signal event.
func (h *SignalHandler) Classify(c fiber.Ctx) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(c.Body(), &ev); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	signals.Normalize(&ev)
	if err := validation.Struct(ev); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validation.FirstError(err))
	}

	result := signals.Classify(ev)
	metrics.RecordSignal(result.Label)

	if h.store != nil {
		stored := &models.StoredSignal{
			Event:     ev,
			Label:     result.Label,
			Rule:      result.Rule,
			IPAddress: c.IP(),
		}
		if err := h.store.InsertSignalEvent(c.Context(), stored); err != nil {
			slog.Error("failed to store signal event", "event_type", ev.EventType, "label", result.Label, "error", err)
		}
	}

	return jsonSuccess(c, models.ClassifyResponse{Label: result.Label, Rule: result.Rule})
}

// List returns recent classified signals for staff.
func (h *SignalHandler) List(c fiber.Ctx) error {
	if h.store == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "signal storage not configured")
	}

	label := c.Query("label")
	if label != "" && !isReadinessLabel(label) {
		return jsonError(c, fiber.StatusBadRequest, "unknown label")
	}

	events, err := h.store.ListSignalEvents(c.Context(), label, queryLimit(c))
	if err != nil {
		slog.Error("failed to list signal events", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch signals")
	}

	return jsonSuccess(c, events)
}

func isReadinessLabel(label string) bool {
	for _, l := range models.ReadinessLabels {
		if l == label {
			return true
		}
	}
	return false
}

package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"leadrelay/internal/feed"
	"leadrelay/internal/metrics"
)

// FeedHandler serves the allow-listed RSS proxy.
type FeedHandler struct {
	proxy *feed.Proxy
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(proxy *feed.Proxy) *FeedHandler {
	return &FeedHandler{proxy: proxy}
}

// Get fetches the requested feed and passes its bytes through.
func (h *FeedHandler) Get(c fiber.Ctx) error {
	f, err := h.proxy.Fetch(c.Context(), c.Query("url"))
	if err != nil {
		return feedError(c, err)
	}

	if f.Cached {
		metrics.RecordFeedFetch("hit")
		c.Set("X-Cache", "HIT")
	} else {
		metrics.RecordFeedFetch("miss")
		c.Set("X-Cache", "MISS")
	}
	c.Set(fiber.HeaderContentType, f.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.Send(f.Body)
}

func feedError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, feed.ErrBadURL):
		metrics.RecordFeedFetch("bad_url")
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, feed.ErrHostNotAllowed):
		metrics.RecordFeedFetch("forbidden")
		return jsonError(c, fiber.StatusForbidden, feed.ErrHostNotAllowed.Error())
	case errors.Is(err, feed.ErrUnavailable):
		metrics.RecordFeedFetch("unavailable")
		return jsonError(c, fiber.StatusServiceUnavailable, feed.ErrUnavailable.Error())
	case errors.Is(err, feed.ErrTooLarge):
		metrics.RecordFeedFetch("too_large")
		return jsonError(c, fiber.StatusBadGateway, feed.ErrTooLarge.Error())
	default:
		slog.Warn("feed proxy upstream error", "error", err)
		metrics.RecordFeedFetch("upstream_error")
		return jsonError(c, fiber.StatusBadGateway, feed.ErrUpstream.Error())
	}
}

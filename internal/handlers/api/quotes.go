package api

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"

	"leadrelay/internal/botcheck"
	"leadrelay/internal/models"
	"leadrelay/internal/quotes"
)

// QuoteHandler accepts quote-form submissions from the public site.
type QuoteHandler struct {
	relay *quotes.Relay
}

// NewQuoteHandler creates a new quote submission handler.
func NewQuoteHandler(relay *quotes.Relay) *QuoteHandler {
	return &QuoteHandler{relay: relay}
}

// Submit relays one quote form into storage.
func (h *QuoteHandler) Submit(c fiber.Ctx) error {
	quoteType, fields, err := quotes.ParseRequest(c.Body(), h.relay.HoneypotField())
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	res, err := h.relay.Submit(c.Context(), quotes.Submission{
		QuoteType: quoteType,
		Fields:    fields,
		Meta:      requestMetadata(c, fields),
	})
	if err != nil {
		return submitError(c, err)
	}

	switch res.Outcome {
	case quotes.OutcomeBot:
		return jsonSuccess(c, models.QuoteSubmitResponse{Accepted: true})
	case quotes.OutcomeDuplicate:
		resp := models.QuoteSubmitResponse{
			QuoteType: res.Route.Type,
			Table:     res.Route.Table,
			Accepted:  true,
			Duplicate: true,
		}
		// The first request may still be inserting.
		if res.Quote.ID != uuid.Nil {
			resp.ID = &res.Quote.ID
		}
		return jsonSuccess(c, resp)
	default:
		return jsonStatus(c, fiber.StatusCreated, models.QuoteSubmitResponse{
			ID:        &res.Quote.ID,
			QuoteType: res.Route.Type,
			Table:     res.Route.Table,
			Accepted:  true,
		})
	}
}

func submitError(c fiber.Ctx, err error) error {
	switch {
	case quotes.IsClientError(err), errors.Is(err, botcheck.ErrTokenMissing):
		return jsonError(c, fiber.StatusBadRequest, clientMessage(err))
	case errors.Is(err, botcheck.ErrVerificationFailed):
		return jsonError(c, fiber.StatusForbidden, botcheck.ErrVerificationFailed.Error())
	case errors.Is(err, botcheck.ErrUnavailable):
		return jsonError(c, fiber.StatusServiceUnavailable, botcheck.ErrUnavailable.Error())
	default:
		return jsonError(c, fiber.StatusInternalServerError, quotes.ErrStoreFailed.Error())
	}
}

// clientMessage strips wrapped detail from a sentinel error.
func clientMessage(err error) string {
	for _, sentinel := range []error{
		quotes.ErrInvalidBody,
		quotes.ErrQuoteTypeRequired,
		quotes.ErrUnsupportedQuoteType,
		quotes.ErrInvalidEmail,
		quotes.ErrContactRequired,
		botcheck.ErrTokenMissing,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "invalid request"
}

// requestMetadata captures the request context stored with a submission.
func requestMetadata(c fiber.Ctx, fields map[string]any) models.SubmissionMetadata {
	meta := models.SubmissionMetadata{
		SubmittedAt: time.Now().UTC(),
		IPAddress:   c.IP(),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
		Referer:     c.Get(fiber.HeaderReferer),
		Origin:      c.Get(fiber.HeaderOrigin),
		RequestID:   requestid.FromContext(c),
	}

	if page, ok := fields["source_page"].(string); ok && page != "" {
		meta.SourcePage = page
	} else if meta.Referer != "" {
		if u, err := url.Parse(meta.Referer); err == nil {
			meta.SourcePage = u.Path
		}
	}

	return meta
}

// Package quotes relays quote-form submissions from the public site into
// per-line storage tables.
package quotes

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"leadrelay/internal/botcheck"
	"leadrelay/internal/metrics"
	"leadrelay/internal/models"
)

// Outcome labels used for metrics and results.
const (
	OutcomeStored        = "stored"
	OutcomeDuplicate     = "duplicate"
	OutcomeBot           = "bot"
	OutcomeCaptchaFailed = "captcha_failed"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// unresolvedType labels submissions whose quote type did not resolve.
const unresolvedType = "unknown"

// Store persists submissions and audit events.
type Store interface {
	InsertQuote(ctx context.Context, q *models.QuoteSubmission) error
	InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error
}

// CaptchaVerifier verifies a CAPTCHA token for a client IP.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Notifier is told about each stored submission.
type Notifier interface {
	NotifyQuoteSubmitted(ctx context.Context, q *models.QuoteSubmission)
}

// Submission is one parsed request to the relay.
type Submission struct {
	QuoteType string
	Fields    map[string]any // snake_cased, see ParseRequest
	Meta      models.SubmissionMetadata
}

// Result describes what the relay did with a submission.
type Result struct {
	Route   Route
	Outcome string
	// Quote is the stored row; for duplicates only ID is set. Nil for bots.
	Quote *models.QuoteSubmission
}

// Relay validates, checks and stores quote submissions.
type Relay struct {
	router   *Router
	store    Store
	verifier CaptchaVerifier
	guard    *DuplicateGuard
	notifier Notifier
	opts     Options
}

// NewRelay wires a relay. guard and notifier may be nil.
func NewRelay(router *Router, store Store, verifier CaptchaVerifier, guard *DuplicateGuard, notifier Notifier, opts Options) *Relay {
	return &Relay{
		router:   router,
		store:    store,
		verifier: verifier,
		guard:    guard,
		notifier: notifier,
		opts:     opts,
	}
}

// Router returns the relay's routing table.
func (r *Relay) Router() *Router {
	return r.router
}

// HoneypotField returns the snake_cased honeypot field name.
func (r *Relay) HoneypotField() string {
	return r.opts.HoneypotField
}

// Submit runs one submission through the relay: honeypot, routing,
// normalization, CAPTCHA, duplicate guard, insert, audit and notification.
func (r *Relay) Submit(ctx context.Context, sub Submission) (*Result, error) {
	// Honeypot first so bots learn nothing about validation rules.
	if botcheck.HoneypotTripped(sub.Fields, r.opts.HoneypotField) {
		route, _ := r.router.Resolve(sub.QuoteType)
		r.finish(ctx, sub, route, OutcomeBot, models.AuditQuoteBotBlocked, nil, map[string]any{"reason": "honeypot"})
		return &Result{Route: route, Outcome: OutcomeBot}, nil
	}

	route, err := r.router.Resolve(sub.QuoteType)
	if err != nil {
		metrics.RecordQuoteSubmission(unresolvedType, OutcomeInvalid)
		return nil, err
	}

	norm, err := Normalize(sub.Fields, r.opts)
	if err != nil {
		metrics.RecordQuoteSubmission(route.Type, OutcomeInvalid)
		return nil, err
	}

	if err := r.verifier.Verify(ctx, botcheck.Token(sub.Fields), sub.Meta.IPAddress); err != nil {
		if errors.Is(err, botcheck.ErrVerificationFailed) || errors.Is(err, botcheck.ErrTokenMissing) {
			r.finish(ctx, sub, route, OutcomeCaptchaFailed, models.AuditQuoteCaptchaFailed, nil, map[string]any{"reason": err.Error()})
		} else {
			slog.Error("captcha verification unavailable", "quote_type", route.Type, "error", err)
			metrics.RecordQuoteSubmission(route.Type, OutcomeError)
		}
		return nil, err
	}

	if id, ok := r.guard.Seen(route.Table, norm.Email, norm.Phone); ok {
		return r.duplicate(ctx, sub, route, id), nil
	}
	if !r.guard.Reserve(route.Table, norm.Email, norm.Phone) {
		return r.duplicate(ctx, sub, route, uuid.Nil), nil
	}

	q := &models.QuoteSubmission{
		Table:     route.Table,
		QuoteType: route.Type,
		FirstName: optional(norm.FirstName),
		LastName:  optional(norm.LastName),
		Email:     optional(norm.Email),
		Phone:     optional(norm.Phone),
		ZipCode:   optional(norm.ZipCode),
		Payload:   norm.Payload,
		Metadata:  sub.Meta.Map(),
	}

	if err := r.store.InsertQuote(ctx, q); err != nil {
		slog.Error("failed to store quote submission", "table", route.Table, "error", err)
		r.guard.Release(route.Table, norm.Email, norm.Phone)
		r.finish(ctx, sub, route, OutcomeError, models.AuditQuoteStoreFailed, nil, map[string]any{"error": err.Error()})
		return nil, ErrStoreFailed
	}

	r.guard.Remember(route.Table, norm.Email, norm.Phone, q.ID)
	r.finish(ctx, sub, route, OutcomeStored, models.AuditQuoteSubmitted, &q.ID, nil)

	if r.notifier != nil {
		r.notifier.NotifyQuoteSubmitted(ctx, q)
	}

	return &Result{Route: route, Outcome: OutcomeStored, Quote: q}, nil
}

// duplicate answers a repeat of a stored or in-flight submission. id is
// uuid.Nil while the first insert has not finished.
func (r *Relay) duplicate(ctx context.Context, sub Submission, route Route, id uuid.UUID) *Result {
	q := &models.QuoteSubmission{ID: id, Table: route.Table, QuoteType: route.Type}
	var recordID *uuid.UUID
	if id != uuid.Nil {
		recordID = &id
	}
	r.finish(ctx, sub, route, OutcomeDuplicate, models.AuditQuoteDuplicate, recordID, nil)
	return &Result{Route: route, Outcome: OutcomeDuplicate, Quote: q}
}

// finish records the metric and the single audit event for an outcome.
func (r *Relay) finish(ctx context.Context, sub Submission, route Route, outcome, eventType string, recordID *uuid.UUID, detail map[string]any) {
	// Unresolved tags come from the client; only route types become labels.
	quoteType := route.Type
	if quoteType == "" {
		quoteType = unresolvedType
		if sub.QuoteType != "" {
			detail = withDetail(detail, "requested_type", truncate(sub.QuoteType, 64))
		}
	}
	metrics.RecordQuoteSubmission(quoteType, outcome)

	event := &models.AuditEvent{
		EventType: eventType,
		QuoteType: quoteType,
		TableName: route.Table,
		RecordID:  recordID,
		IPAddress: sub.Meta.IPAddress,
		RequestID: sub.Meta.RequestID,
		Detail:    detail,
	}

	slog.Info("audit",
		"event", eventType,
		"quote_type", quoteType,
		"table", route.Table,
		"record_id", recordID,
		"request_id", sub.Meta.RequestID,
	)

	// Audit rows outlive a cancelled client request.
	if err := r.store.InsertAuditEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Error("failed to store audit event", "event", eventType, "error", err)
	}
}

func withDetail(detail map[string]any, key string, val any) map[string]any {
	if detail == nil {
		detail = make(map[string]any, 1)
	}
	detail[key] = val
	return detail
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

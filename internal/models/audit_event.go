package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types
const (
	AuditQuoteSubmitted     = "quote.submitted"
	AuditQuoteDuplicate     = "quote.duplicate"
	AuditQuoteBotBlocked    = "quote.bot_blocked"
	AuditQuoteCaptchaFailed = "quote.captcha_failed"
	AuditQuoteStoreFailed   = "quote.store_failed"
	AuditQuoteStatusChanged = "quote.status_changed"
)

// AuditEvent records one relay outcome.
type AuditEvent struct {
	ID        uuid.UUID      `json:"id"`
	EventType string         `json:"event_type"`
	QuoteType string         `json:"quote_type,omitempty"`
	TableName string         `json:"table_name,omitempty"`
	RecordID  *uuid.UUID     `json:"record_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

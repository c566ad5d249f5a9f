package models

import (
	"time"

	"github.com/google/uuid"
)

// Readiness label constants
const (
	ReadinessCallNow   = "call_now"
	ReadinessFollowUp  = "follow_up"
	ReadinessNurture   = "nurture"
	ReadinessLowIntent = "low_intent"
)

// ReadinessLabels lists all labels in rule order.
var ReadinessLabels = []string{
	ReadinessCallNow,
	ReadinessFollowUp,
	ReadinessNurture,
	ReadinessLowIntent,
}

// SignalEvent is an inbound marketing event posted by the site.
type SignalEvent struct {
	EventType     string     `json:"event_type" validate:"required,max=64"`
	Source        string     `json:"source,omitempty" validate:"max=128"`
	Page          string     `json:"page,omitempty" validate:"max=512"`
	QuoteType     string     `json:"quote_type,omitempty" validate:"max=64"`
	SessionCount  int        `json:"session_count,omitempty" validate:"gte=0"`
	SecondsOnPage int        `json:"seconds_on_page,omitempty" validate:"gte=0"`
	HasPhone      bool       `json:"has_phone,omitempty"`
	HasEmail      bool       `json:"has_email,omitempty"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

// StoredSignal is a classified signal as persisted.
type StoredSignal struct {
	ID        uuid.UUID   `json:"id"`
	Event     SignalEvent `json:"event"`
	Label     string      `json:"label"`
	Rule      string      `json:"rule"`
	IPAddress string      `json:"ip_address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

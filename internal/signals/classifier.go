// Package signals assigns readiness labels to inbound marketing events.
package signals

import (
	"strings"

	"leadrelay/internal/models"
)

// Rule names reported alongside a label.
const (
	RuleHotEvent        = "hot_event"
	RuleFormWithPhone   = "form_with_phone"
	RuleWarmEvent       = "warm_event"
	RuleQuotePageEmail  = "quote_page_with_email"
	RuleContentEvent    = "content_event"
	RuleRepeatVisitor   = "repeat_visitor"
	RuleEngagedReader   = "engaged_reader"
	RuleDefault         = "default"
	repeatVisitSessions = 3
	engagedSeconds      = 120
)

var (
	hotEvents = map[string]bool{
		"call_click":       true,
		"phone_click":      true,
		"quote_submitted":  true,
		"callback_request": true,
	}
	warmEvents = map[string]bool{
		"quote_started": true,
		"form_submit":   true,
	}
	contentEvents = map[string]bool{
		"newsletter_signup": true,
		"blog_read":         true,
		"email_click":       true,
		"content_download":  true,
	}
)

// Result is the outcome of classifying one event.
type Result struct {
	Label string
	Rule  string
}

// Classify maps an event to a readiness label. Rules are evaluated in a
// fixed order and the first match wins.
func Classify(ev models.SignalEvent) Result {
	eventType := normalize(ev.EventType)
	page := normalize(ev.Page)

	switch {
	case hotEvents[eventType]:
		return Result{models.ReadinessCallNow, RuleHotEvent}
	case eventType == "form_submit" && ev.HasPhone:
		return Result{models.ReadinessCallNow, RuleFormWithPhone}
	case warmEvents[eventType]:
		return Result{models.ReadinessFollowUp, RuleWarmEvent}
	case ev.HasEmail && strings.HasPrefix(page, "/quote"):
		return Result{models.ReadinessFollowUp, RuleQuotePageEmail}
	case contentEvents[eventType]:
		return Result{models.ReadinessNurture, RuleContentEvent}
	case ev.SessionCount >= repeatVisitSessions:
		return Result{models.ReadinessNurture, RuleRepeatVisitor}
	case ev.SecondsOnPage >= engagedSeconds:
		return Result{models.ReadinessNurture, RuleEngagedReader}
	default:
		return Result{models.ReadinessLowIntent, RuleDefault}
	}
}

// Normalize trims and lowercases the free-text fields of an event in place
// so stored events match what the classifier saw.
func Normalize(ev *models.SignalEvent) {
	ev.EventType = normalize(ev.EventType)
	ev.Page = normalize(ev.Page)
	ev.Source = normalize(ev.Source)
	ev.QuoteType = normalize(ev.QuoteType)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

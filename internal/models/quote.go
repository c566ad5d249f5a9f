package models

import (
	"time"

	"github.com/google/uuid"
)

// Quote status constants
const (
	QuoteStatusNew       = "new"
	QuoteStatusContacted = "contacted"
	QuoteStatusQuoted    = "quoted"
	QuoteStatusBound     = "bound"
	QuoteStatusClosed    = "closed"
)

// QuoteStatuses lists every status a stored submission may carry.
var QuoteStatuses = []string{
	QuoteStatusNew,
	QuoteStatusContacted,
	QuoteStatusQuoted,
	QuoteStatusBound,
	QuoteStatusClosed,
}

// IsValidQuoteStatus reports whether s is a known status.
func IsValidQuoteStatus(s string) bool {
	for _, v := range QuoteStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// QuoteSubmission is one stored quote-form submission.
type QuoteSubmission struct {
	ID        uuid.UUID      `json:"id"`
	Table     string         `json:"table"`
	QuoteType string         `json:"quote_type"`
	FirstName *string        `json:"first_name,omitempty"`
	LastName  *string        `json:"last_name,omitempty"`
	Email     *string        `json:"email,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	ZipCode   *string        `json:"zip_code,omitempty"`
	Payload   map[string]any `json:"payload"`
	Metadata  map[string]any `json:"metadata"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DisplayName returns the best human-readable name for the submitter.
func (q *QuoteSubmission) DisplayName() string {
	var name string
	if q.FirstName != nil {
		name = *q.FirstName
	}
	if q.LastName != nil {
		if name != "" {
			name += " "
		}
		name += *q.LastName
	}
	if name == "" && q.Email != nil {
		return *q.Email
	}
	return name
}

// SubmissionMetadata is request context attached to every stored submission.
type SubmissionMetadata struct {
	SubmittedAt time.Time `json:"submitted_at"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Referer     string    `json:"referer,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	SourcePage  string    `json:"source_page,omitempty"`
}

// Map converts metadata into the jsonb document stored with a submission.
func (m SubmissionMetadata) Map() map[string]any {
	out := map[string]any{
		"submitted_at": m.SubmittedAt.UTC().Format(time.RFC3339),
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("ip_address", m.IPAddress)
	set("user_agent", m.UserAgent)
	set("referer", m.Referer)
	set("origin", m.Origin)
	set("request_id", m.RequestID)
	set("source_page", m.SourcePage)
	return out
}

// TableCount is the number of stored submissions in a table by status.
type TableCount struct {
	Table  string
	Status string
	Count  int64
}

package models

import (
	"github.com/google/uuid"
)

// QuoteSubmitResponse is returned to the site after a quote form is relayed.
type QuoteSubmitResponse struct {
	ID        *uuid.UUID `json:"id,omitempty"`
	QuoteType string     `json:"quote_type,omitempty"`
	Table     string     `json:"table,omitempty"`
	Accepted  bool       `json:"accepted"`
	Duplicate bool       `json:"duplicate,omitempty"`
}

// ClassifyResponse contains the readiness label for a signal.
type ClassifyResponse struct {
	Label string `json:"label"`
	Rule  string `json:"rule"`
}

// StatusUpdateRequest changes the pipeline status of a stored submission.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted quoted bound closed"`
}

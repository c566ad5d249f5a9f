package email

import (
	"context"

	"leadrelay/internal/config"
	"leadrelay/internal/models"
)

// Notifier sends staff alerts for relay events.
type Notifier struct {
	service   *Service
	templates *Templates
	cfg       *config.Config
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg *config.Config) *Notifier {
	return &Notifier{
		service:   NewService(cfg),
		templates: NewTemplates(cfg),
		cfg:       cfg,
	}
}

// NotifyQuoteSubmitted alerts the configured recipients about a stored
// submission. Delivery happens in the background.
func (n *Notifier) NotifyQuoteSubmitted(_ context.Context, q *models.QuoteSubmission) {
	if !n.service.IsEnabled() || q == nil {
		return
	}

	subject, htmlBody, textBody := n.templates.QuoteSubmitted(q)
	n.service.SendAsync(n.cfg.NotifyEmails, subject, htmlBody, textBody)
}

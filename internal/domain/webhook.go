package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Webhook events a registration can subscribe to.
const (
	EventOperationCompleted = "operation.completed"
	EventOperationFailed    = "operation.failed"
	EventContentPublished   = "content.published"
)

var knownEvents = map[string]struct{}{
	EventOperationCompleted: {},
	EventOperationFailed:    {},
	EventContentPublished:   {},
}

// WebhookRegistration is a durable subscription to platform events.
type WebhookRegistration struct {
	ID             string
	OwnerID        string
	Name           string
	URL            string
	Events         []string
	Active         bool
	LastExecutedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks name, url and events.
func (w *WebhookRegistration) Validate() error {
	w.Name = strings.TrimSpace(w.Name)
	w.URL = strings.TrimSpace(w.URL)
	if w.Name == "" {
		return NewValidationError("name", "name is required")
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError("url", "url must be an absolute http(s) URL")
	}
	for _, ev := range w.Events {
		if _, ok := knownEvents[ev]; !ok {
			return NewValidationError("events", fmt.Sprintf("unknown event %q", ev))
		}
	}
	return nil
}

// EventForStatus maps a terminal status to its webhook event.
func EventForStatus(s OperationStatus) (string, bool) {
	switch s {
	case StatusCompleted:
		return EventOperationCompleted, true
	case StatusFailed:
		return EventOperationFailed, true
	}
	return "", false
}

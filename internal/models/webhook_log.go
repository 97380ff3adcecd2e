package models

import "time"

// WebhookLogEntry captures one relay exchange for diagnostics.
type WebhookLogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Error     string            `json:"error,omitempty"`
}

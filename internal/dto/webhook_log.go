package dto

import "github.com/noah-isme/sku-media-api/internal/models"

// AppendWebhookLogRequest records one relay exchange reported by a client.
type AppendWebhookLogRequest struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Error   string            `json:"error,omitempty"`
}

// WebhookLogList returns the retained log entries, most recent first.
type WebhookLogList struct {
	Logs  []models.WebhookLogEntry `json:"logs"`
	Total int                      `json:"total"`
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sku-media-api/internal/dto"
	"github.com/noah-isme/sku-media-api/internal/models"
	"github.com/noah-isme/sku-media-api/internal/repository"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
	"github.com/noah-isme/sku-media-api/pkg/response"
)

// WebhookLogHandler exposes the in-memory relay log ring for debugging.
type WebhookLogHandler struct {
	store *repository.WebhookLogStore
}

// NewWebhookLogHandler builds a new handler.
func NewWebhookLogHandler(store *repository.WebhookLogStore) *WebhookLogHandler {
	return &WebhookLogHandler{store: store}
}

// Append records one relay exchange reported by a client.
func (h *WebhookLogHandler) Append(c *gin.Context) {
	var req dto.AppendWebhookLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid log payload"))
		return
	}

	h.store.Append(models.WebhookLogEntry{
		Status:  req.Status,
		Headers: req.Headers,
		Body:    req.Body,
		Error:   req.Error,
	})
	response.JSON(c, http.StatusOK, gin.H{"success": true})
}

// List returns retained entries, most recent first.
func (h *WebhookLogHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.WebhookLogList{
		Logs:  h.store.List(),
		Total: h.store.Total(),
	})
}

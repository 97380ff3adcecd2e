package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sku-media-api/internal/dto"
	"github.com/noah-isme/sku-media-api/internal/models"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
	"github.com/noah-isme/sku-media-api/pkg/response"
)

type processService interface {
	Submit(ctx context.Context, sku string, files []models.UploadItem) (*dto.SubmissionResult, error)
	Snapshot() []models.ProcessingRecord
}

// ProcessHandler exposes the batch upload endpoint and the record snapshot.
type ProcessHandler struct {
	service processService
}

// NewProcessHandler builds a new handler.
func NewProcessHandler(service processService) *ProcessHandler {
	return &ProcessHandler{service: service}
}

// Submit accepts a multipart form with an `sku` field and one or more `files`
// parts and runs the processing pipeline synchronously.
func (h *ProcessHandler) Submit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form"))
		return
	}

	sku := c.PostForm("sku")
	files := make([]models.UploadItem, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		f, openErr := fh.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file "+fh.Filename))
			return
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file "+fh.Filename))
			return
		}
		files = append(files, models.UploadItem{
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Data:         data,
		})
	}

	result, err := h.service.Submit(c.Request.Context(), sku, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Snapshot lists every processing record known to this instance.
func (h *ProcessHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.RecordSnapshot{Items: h.service.Snapshot()})
}

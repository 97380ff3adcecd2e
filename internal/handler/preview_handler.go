package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sku-media-api/internal/repository"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
	"github.com/noah-isme/sku-media-api/pkg/response"
)

// PreviewHandler serves processed image bytes from the buffer store.
type PreviewHandler struct {
	buffers repository.BufferStore
}

// NewPreviewHandler builds a new handler.
func NewPreviewHandler(buffers repository.BufferStore) *PreviewHandler {
	return &PreviewHandler{buffers: buffers}
}

// Get streams the stored bytes for one buffered preview. Entries stored as
// data URLs are decoded back into their binary form before serving.
func (h *PreviewHandler) Get(c *gin.Context) {
	data, err := h.buffers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrBufferNotFound) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "preview not found or expired"))
			return
		}
		response.Error(c, err)
		return
	}

	contentType := "image/jpeg"
	if bytes.HasPrefix(data, []byte("data:")) {
		mime, decoded, decodeErr := decodeDataURL(string(data))
		if decodeErr != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "stored preview is a malformed data URL"))
			return
		}
		contentType = mime
		data = decoded
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}

func decodeDataURL(raw string) (string, []byte, error) {
	rest := strings.TrimPrefix(raw, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, errors.New("missing payload separator")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("unsupported data URL encoding")
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, decoded, nil
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sku-media-api/internal/dto"
	"github.com/noah-isme/sku-media-api/internal/repository"
	"github.com/noah-isme/sku-media-api/internal/service"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
	"github.com/noah-isme/sku-media-api/pkg/response"
)

type archiveBuilder interface {
	Build(entries []service.ZipEntry) ([]byte, error)
}

type archiveSender interface {
	SendArchive(ctx context.Context, zipName string, data []byte, caption string) ([]int64, error)
}

// DeliveryHandler zips selected processed files and ships the archive to the
// messaging bot.
type DeliveryHandler struct {
	buffers  repository.BufferStore
	archive  archiveBuilder
	telegram archiveSender
	logger   *zap.Logger
	now      func() time.Time
}

// NewDeliveryHandler builds a new handler.
func NewDeliveryHandler(buffers repository.BufferStore, archive archiveBuilder, telegram archiveSender, logger *zap.Logger) *DeliveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryHandler{
		buffers:  buffers,
		archive:  archive,
		telegram: telegram,
		logger:   logger,
		now:      time.Now,
	}
}

// Deliver collects the referenced buffered files, builds the archive and
// sends it. Items whose bytes are no longer buffered are skipped with a
// warning rather than failing the whole delivery.
func (h *DeliveryHandler) Deliver(c *gin.Context) {
	var req dto.DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delivery payload"))
		return
	}

	sku := strings.TrimSpace(req.Sku)
	if sku == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "SKU is required"))
		return
	}
	if len(req.Items) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no items to deliver"))
		return
	}

	ctx := c.Request.Context()
	entries := make([]service.ZipEntry, 0, len(req.Items))
	for _, item := range req.Items {
		data, ok := h.lookup(ctx, item)
		if !ok {
			h.logger.Warn("delivery item no longer buffered, skipping",
				zap.String("sku", sku),
				zap.String("serverName", item.ServerName),
				zap.String("bufferId", item.BufferID),
			)
			continue
		}
		entries = append(entries, service.ZipEntry{Name: item.ServerName, Data: data})
	}
	if len(entries) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "none of the requested files are still available"))
		return
	}

	zipName := service.BuildZipName(sku, h.now())
	archive, err := h.archive.Build(entries)
	if err != nil {
		response.Error(c, err)
		return
	}

	ids, err := h.telegram.SendArchive(ctx, zipName, archive, h.caption(sku, len(entries), req.Links))
	if err != nil {
		response.Error(c, err)
		return
	}

	var lastID int64
	if len(ids) > 0 {
		lastID = ids[len(ids)-1]
	}
	response.JSON(c, http.StatusOK, dto.DeliveryResponse{
		OK:                true,
		ZipFileName:       zipName,
		TelegramMessageID: lastID,
	})
}

// lookup fetches the stored bytes for one item, preferring the buffer ID over
// the server file name, and decodes data URL entries back to binary.
func (h *DeliveryHandler) lookup(ctx context.Context, item dto.DeliveryItem) ([]byte, bool) {
	keys := make([]string, 0, 2)
	if item.BufferID != "" {
		keys = append(keys, item.BufferID)
	}
	if item.ServerName != "" {
		keys = append(keys, item.ServerName)
	}
	for _, key := range keys {
		data, err := h.buffers.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, repository.ErrBufferNotFound) {
				h.logger.Warn("buffer lookup failed", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		if strings.HasPrefix(string(data), "data:") {
			if _, decoded, decodeErr := decodeDataURL(string(data)); decodeErr == nil {
				return decoded, true
			}
			h.logger.Warn("stored preview is a malformed data URL", zap.String("key", key))
			continue
		}
		return data, true
	}
	return nil, false
}

func (h *DeliveryHandler) caption(sku string, count int, links []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n%d file(s)", sku, count)
	for _, link := range links {
		if link = strings.TrimSpace(link); link != "" {
			b.WriteString("\n")
			b.WriteString(link)
		}
	}
	return b.String()
}

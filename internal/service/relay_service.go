package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sku-media-api/internal/models"
	"github.com/noah-isme/sku-media-api/internal/repository"
	"github.com/noah-isme/sku-media-api/pkg/config"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
)

const relayLogBodyLimit = 2048

// RelayService delivers one file's bytes to the external processing webhook
// and interprets the heterogeneous response into a single preview location.
type RelayService struct {
	endpoint string
	client   *http.Client
	logs     *repository.WebhookLogStore
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewRelayService constructs the relay against the configured endpoint.
func NewRelayService(cfg config.WebhookConfig, logs *repository.WebhookLogStore, metrics *MetricsService, logger *zap.Logger) *RelayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RelayService{
		endpoint: cfg.URL,
		client:   &http.Client{Timeout: timeout},
		logs:     logs,
		metrics:  metrics,
		logger:   logger,
	}
}

// Send posts the bytes as a single binary body and returns the interpreted
// preview location. A non-2xx status fails; trouble interpreting a 2xx
// response degrades to the endpoint URL instead of failing.
func (s *RelayService) Send(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.ObserveRelay(time.Since(start), false)
		s.recordLog(0, nil, "", err)
		return "", fmt.Errorf("webhook request for %q: %w", filename, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		body = nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.metrics.ObserveRelay(time.Since(start), false)
		s.recordLog(resp.StatusCode, resp.Header, string(body), nil)
		return "", appErrors.Clone(appErrors.ErrWebhookHTTP,
			fmt.Sprintf("webhook returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	s.metrics.ObserveRelay(time.Since(start), true)
	s.recordLog(resp.StatusCode, resp.Header, string(body), nil)

	location := classifyResponse(resp.Header.Get("Content-Type"), body).resolve(s.endpoint)
	s.logger.Debug("webhook relay done",
		zap.String("file", filename),
		zap.Int("status", resp.StatusCode),
		zap.String("location_prefix", truncate(location, 48)),
	)
	return location, nil
}

func (s *RelayService) recordLog(status int, headers http.Header, body string, callErr error) {
	if s.logs == nil {
		return
	}
	entry := models.WebhookLogEntry{
		Status:  status,
		Headers: flattenHeaders(headers),
		Body:    truncate(body, relayLogBodyLimit),
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	s.logs.Append(entry)
}

// previewShape enumerates the recognized webhook response shapes.
type previewShape int

const (
	shapeFallback previewShape = iota
	shapeJSONURL
	shapeTextURL
	shapeBinary
)

// classifiedResponse is the tagged result of probing a webhook response.
type classifiedResponse struct {
	shape    previewShape
	location string
	mime     string
	payload  []byte
}

// classifyResponse inspects the response headers and body and buckets the
// result into one of the recognized shapes. It never fails: anything it
// cannot make sense of becomes the fallback shape.
func classifyResponse(contentType string, body []byte) classifiedResponse {
	ct := strings.ToLower(contentType)

	if strings.Contains(ct, "application/json") {
		var probe map[string]interface{}
		if err := json.Unmarshal(body, &probe); err == nil {
			for _, key := range []string{"url", "imageUrl", "image"} {
				if raw, ok := probe[key]; ok {
					if loc, ok := raw.(string); ok && loc != "" {
						return classifiedResponse{shape: shapeJSONURL, location: loc}
					}
				}
			}
		}
		return classifiedResponse{shape: shapeFallback}
	}

	if strings.Contains(ct, "text") {
		text := strings.TrimSpace(string(body))
		if strings.HasPrefix(text, "http") {
			return classifiedResponse{shape: shapeTextURL, location: text}
		}
		return classifiedResponse{shape: shapeFallback}
	}

	mime := strings.TrimSpace(contentType)
	if mime == "" {
		mime = "image/jpeg"
	}
	return classifiedResponse{shape: shapeBinary, mime: mime, payload: body}
}

// resolve turns a classified response into the preview location the caller
// stores on the record.
func (c classifiedResponse) resolve(endpoint string) string {
	switch c.shape {
	case shapeJSONURL, shapeTextURL:
		return c.location
	case shapeBinary:
		return fmt.Sprintf("data:%s;base64,%s", c.mime, base64.StdEncoding.EncodeToString(c.payload))
	default:
		return endpoint
	}
}

func flattenHeaders(h http.Header) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(h))
	for key := range h {
		out[key] = h.Get(key)
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

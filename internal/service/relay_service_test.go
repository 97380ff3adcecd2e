package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sku-media-api/internal/repository"
	"github.com/noah-isme/sku-media-api/pkg/config"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
)

func newTestRelay(t *testing.T, handler http.HandlerFunc) (*RelayService, *repository.WebhookLogStore, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logs := repository.NewWebhookLogStore(10)
	relay := NewRelayService(config.WebhookConfig{URL: server.URL, Timeout: 5 * time.Second}, logs, nil, nil)
	return relay, logs, server
}

func TestRelayInterpretsJSONURL(t *testing.T) {
	var gotContentType, gotDisposition string
	relay, logs, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotDisposition = r.Header.Get("Content-Disposition")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://x/y.jpg"}`))
	})

	loc, err := relay.Send(context.Background(), []byte("jpegbytes"), "image/jpeg", "SKU_001.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://x/y.jpg", loc)
	assert.Equal(t, "image/jpeg", gotContentType)
	assert.Equal(t, `attachment; filename="SKU_001.jpg"`, gotDisposition)
	assert.Equal(t, 1, logs.Total())
}

func TestRelayJSONFieldPriority(t *testing.T) {
	relay, _, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"image":"https://c","imageUrl":"https://b","url":"https://a"}`))
	})

	loc, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://a", loc)
}

func TestRelayJSONWithoutURLFallsBackToEndpoint(t *testing.T) {
	relay, _, server := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	})

	loc, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.NoError(t, err)
	assert.Equal(t, server.URL, loc)
}

func TestRelayMalformedJSONDegrades(t *testing.T) {
	relay, _, server := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url": `))
	})

	loc, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.NoError(t, err)
	assert.Equal(t, server.URL, loc)
}

func TestRelayPlainTextURL(t *testing.T) {
	relay, _, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  https://cdn/processed.jpg\n"))
	})

	loc, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/processed.jpg", loc)
}

func TestRelayTextWithoutURLFallsBack(t *testing.T) {
	relay, _, server := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("accepted"))
	})

	loc, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.NoError(t, err)
	assert.Equal(t, server.URL, loc)
}

func TestRelayBinaryBecomesDataURL(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x01, 0x02}
	relay, _, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	})

	loc, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(loc, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(loc, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestRelayNon2xxFails(t *testing.T) {
	relay, logs, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusServiceUnavailable)
	})

	_, err := relay.Send(context.Background(), []byte("x"), "image/jpeg", "f.jpg")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrWebhookHTTP.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "503")

	entries := logs.List()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusServiceUnavailable, entries[0].Status)
}

func TestClassifyResponseShapes(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		shape       previewShape
	}{
		{"json url", "application/json", `{"url":"https://a"}`, shapeJSONURL},
		{"json no url", "application/json", `{}`, shapeFallback},
		{"text url", "text/plain; charset=utf-8", "https://b", shapeTextURL},
		{"text junk", "text/html", "<html></html>", shapeFallback},
		{"binary", "image/jpeg", "\xff\xd8", shapeBinary},
		{"no content type", "", "raw", shapeBinary},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyResponse(tc.contentType, []byte(tc.body))
			assert.Equal(t, tc.shape, got.shape)
		})
	}
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sku-media-api/internal/models"
	"github.com/noah-isme/sku-media-api/internal/repository"
	"github.com/noah-isme/sku-media-api/pkg/config"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
)

type stubRelay struct {
	mu       sync.Mutex
	calls    int
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	fn       func(call int, filename string) (string, error)
}

func (s *stubRelay) Send(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&s.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt32(&s.maxSeen, prev, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(call, filename)
	}
	return "https://cdn.example.com/" + filename, nil
}

func newTestProcessService(t *testing.T, relay relaySender, cfg config.ProcessConfig) (*ProcessService, *repository.RecordStore, *repository.MemoryBufferStore) {
	t.Helper()
	records := repository.NewRecordStore()
	buffers := repository.NewMemoryBufferStore(time.Hour)
	normalizer := NewNormalizeService(zap.NewNop())
	svc := NewProcessService(records, buffers, nil, normalizer, relay, nil, zap.NewNop(), cfg)
	return svc, records, buffers
}

func uploadsOf(t *testing.T, n int) []models.UploadItem {
	t.Helper()
	data := encodeTestImage(t, 8, 6, func(buf *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(buf, img, nil)
	})
	items := make([]models.UploadItem, n)
	for i := range items {
		items[i] = models.UploadItem{
			OriginalName: fmt.Sprintf("photo-%d.jpg", i+1),
			ContentType:  "image/jpeg",
			Data:         data,
		}
	}
	return items
}

func TestProcessServiceSubmitValidation(t *testing.T) {
	svc, _, _ := newTestProcessService(t, nil, config.ProcessConfig{})

	_, err := svc.Submit(context.Background(), "   ", uploadsOf(t, 1))
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "SKU is required", appErr.Message)

	_, err = svc.Submit(context.Background(), "SKU-1", nil)
	require.Error(t, err)
	appErr, ok = err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, "No files provided", appErr.Message)
}

func TestProcessServiceSubmitRejectsOversizedBatch(t *testing.T) {
	svc, _, _ := newTestProcessService(t, nil, config.ProcessConfig{MaxUploads: 2})

	_, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 3))
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "too many files")
}

func TestProcessServiceSubmitRejectsOversizedFile(t *testing.T) {
	svc, _, _ := newTestProcessService(t, nil, config.ProcessConfig{MaxFileBytes: 10})

	_, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 1))
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Contains(t, appErr.Message, "exceeds")
}

func TestProcessServiceSubmitAssignsSequentialServerNames(t *testing.T) {
	relay := &stubRelay{}
	svc, _, buffers := newTestProcessService(t, relay, config.ProcessConfig{})

	result, err := svc.Submit(context.Background(), "ABC123", uploadsOf(t, 4))
	require.NoError(t, err)
	require.Len(t, result.Items, 4)

	for i, item := range result.Items {
		assert.Equal(t, fmt.Sprintf("ABC123_%03d.jpg", i+1), item.ServerName)
		assert.Equal(t, fmt.Sprintf("photo-%d.jpg", i+1), item.OriginalName)
		assert.Equal(t, models.StatusDone, item.Status)
		assert.Equal(t, "https://cdn.example.com/"+item.ServerName, item.PreviewURL)
		assert.Equal(t, 8, item.Width)
		assert.Equal(t, 6, item.Height)
		assert.NotEmpty(t, item.ID)

		data, getErr := buffers.Get(context.Background(), item.ID)
		require.NoError(t, getErr)
		assert.NotEmpty(t, data)
		byName, getErr := buffers.Get(context.Background(), item.ServerName)
		require.NoError(t, getErr)
		assert.Equal(t, data, byName)
	}
}

func TestProcessServiceRetriesTransientRelayFailures(t *testing.T) {
	var attempts int32
	relay := &stubRelay{fn: func(call int, filename string) (string, error) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			return "", appErrors.Clone(appErrors.ErrWebhookHTTP, "webhook returned 503")
		}
		return "https://cdn.example.com/" + filename, nil
	}}
	svc, _, _ := newTestProcessService(t, relay, config.ProcessConfig{
		MaxAttempts: 3,
		BackoffBase: 20 * time.Millisecond,
	})

	start := time.Now()
	result, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 1))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	assert.Equal(t, models.StatusDone, result.Items[0].Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	// backoff 20ms after attempt 1 plus 40ms after attempt 2
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestProcessServiceMarksFileFailedAfterExhaustedAttempts(t *testing.T) {
	relay := &stubRelay{fn: func(call int, filename string) (string, error) {
		return "", appErrors.Clone(appErrors.ErrWebhookHTTP, "webhook returned 500")
	}}
	svc, _, _ := newTestProcessService(t, relay, config.ProcessConfig{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})

	result, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 1))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	assert.Equal(t, models.StatusFailed, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Error, "webhook returned 500")
	assert.Equal(t, 3, relay.calls)
}

func TestProcessServiceIsolatesPerFileFailures(t *testing.T) {
	relay := &stubRelay{}
	svc, _, _ := newTestProcessService(t, relay, config.ProcessConfig{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})

	files := uploadsOf(t, 2)
	files = append(files, models.UploadItem{
		OriginalName: "manual.pdf",
		ContentType:  "application/pdf",
		Data:         []byte("%PDF-1.4"),
	})

	result, err := svc.Submit(context.Background(), "SKU-1", files)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	assert.Equal(t, models.StatusDone, result.Items[0].Status)
	assert.Equal(t, models.StatusDone, result.Items[1].Status)
	assert.Equal(t, models.StatusFailed, result.Items[2].Status)
	assert.Contains(t, result.Items[2].Error, "manual.pdf")
	// the unsupported file never reaches the relay and does not retry
	assert.Equal(t, 2, relay.calls)
}

func TestProcessServiceBoundsConcurrency(t *testing.T) {
	relay := &stubRelay{delay: 20 * time.Millisecond}
	svc, _, _ := newTestProcessService(t, relay, config.ProcessConfig{Concurrency: 3})

	result, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 7))
	require.NoError(t, err)
	require.Len(t, result.Items, 7)

	for _, item := range result.Items {
		assert.Equal(t, models.StatusDone, item.Status)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&relay.maxSeen), int32(3))
	assert.Equal(t, 7, relay.calls)
}

func TestProcessServiceWithoutRelayUsesLocalPreview(t *testing.T) {
	svc, _, buffers := newTestProcessService(t, nil, config.ProcessConfig{})

	result, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 1))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.Equal(t, models.StatusDone, item.Status)
	assert.Equal(t, "/preview/"+item.ID, item.PreviewURL)

	data, getErr := buffers.Get(context.Background(), item.ID)
	require.NoError(t, getErr)
	assert.NotEmpty(t, data)
}

func TestProcessServiceStoresDataURLRelayResult(t *testing.T) {
	relay := &stubRelay{fn: func(call int, filename string) (string, error) {
		return "data:image/jpeg;base64,aGVsbG8=", nil
	}}
	svc, _, buffers := newTestProcessService(t, relay, config.ProcessConfig{})

	result, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 1))
	require.NoError(t, err)
	item := result.Items[0]

	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", item.PreviewURL)
	stored, getErr := buffers.Get(context.Background(), item.ID)
	require.NoError(t, getErr)
	assert.Equal(t, []byte("data:image/jpeg;base64,aGVsbG8="), stored)
}

func TestProcessServiceSnapshotPreservesSubmissionOrder(t *testing.T) {
	relay := &stubRelay{}
	svc, _, _ := newTestProcessService(t, relay, config.ProcessConfig{})

	_, err := svc.Submit(context.Background(), "SKU-1", uploadsOf(t, 3))
	require.NoError(t, err)

	snapshot := svc.Snapshot()
	require.Len(t, snapshot, 3)
	for i, rec := range snapshot {
		assert.Equal(t, fmt.Sprintf("SKU-1_%03d.jpg", i+1), rec.ServerName)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sku-media-api/internal/dto"
	"github.com/noah-isme/sku-media-api/internal/models"
	"github.com/noah-isme/sku-media-api/internal/repository"
	"github.com/noah-isme/sku-media-api/pkg/config"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
	"github.com/noah-isme/sku-media-api/pkg/retry"
)

// relaySender delivers one file's bytes to the external webhook. Nil means
// no webhook is configured and processing succeeds with a local preview
// reference instead.
type relaySender interface {
	Send(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

// workStorage holds transient per-submission files on disk.
type workStorage interface {
	Save(filename string, data []byte) (string, error)
	RemoveDir(dir string) error
}

// ProcessService is the entry point for a batch submission: it validates the
// request, assigns deterministic server names, drives every file through
// normalize+relay with retries under a bounded concurrency window, and
// aggregates per-file outcomes in submission order.
type ProcessService struct {
	records    *repository.RecordStore
	buffers    repository.BufferStore
	work       workStorage
	normalizer *NormalizeService
	relay      relaySender
	metrics    *MetricsService
	logger     *zap.Logger

	concurrency  int
	maxUploads   int
	maxFileBytes int64
	retryCfg     retry.Config
}

// NewProcessService constructs the orchestrator with defaults filled in.
func NewProcessService(records *repository.RecordStore, buffers repository.BufferStore, work workStorage, normalizer *NormalizeService, relay relaySender, metrics *MetricsService, logger *zap.Logger, cfg config.ProcessConfig) *ProcessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &ProcessService{
		records:      records,
		buffers:      buffers,
		work:         work,
		normalizer:   normalizer,
		relay:        relay,
		metrics:      metrics,
		logger:       logger,
		concurrency:  concurrency,
		maxUploads:   cfg.MaxUploads,
		maxFileBytes: cfg.MaxFileBytes,
		retryCfg:     retry.Config{MaxAttempts: cfg.MaxAttempts, BackoffBase: cfg.BackoffBase}.Normalize(),
	}
}

// Submit runs one batch. Individual file failures never fail the batch; the
// caller inspects per-item statuses.
func (s *ProcessService) Submit(ctx context.Context, sku string, files []models.UploadItem) (*dto.SubmissionResult, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "SKU is required")
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No files provided")
	}
	if s.maxUploads > 0 && len(files) > s.maxUploads {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("too many files: %d exceeds limit of %d", len(files), s.maxUploads))
	}
	if s.maxFileBytes > 0 {
		for _, file := range files {
			if int64(len(file.Data)) > s.maxFileBytes {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file %q exceeds %d bytes limit", file.OriginalName, s.maxFileBytes))
			}
		}
	}

	records := make([]*models.ProcessingRecord, len(files))
	for i, file := range files {
		rec := &models.ProcessingRecord{
			ID:           uuid.NewString(),
			OriginalName: file.OriginalName,
			ServerName:   models.ServerFileName(sku, i),
			Status:       models.StatusQueued,
		}
		records[i] = rec
		s.records.Create(rec)
	}

	if s.work != nil {
		defer func() {
			if err := s.work.RemoveDir(sku); err != nil {
				s.logger.Warn("failed to clean working directory", zap.String("sku", sku), zap.Error(err))
			}
		}()
	}

	// Windowed admission: batches of up to `concurrency` files run together
	// and the next batch starts only once the whole window completed.
	for start := 0; start < len(files); start += s.concurrency {
		end := start + s.concurrency
		if end > len(files) {
			end = len(files)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				s.processOne(ctx, sku, files[idx], records[idx])
			}(i)
		}
		wg.Wait()
	}

	items := make([]models.ProcessingRecord, len(records))
	for i, rec := range records {
		if current, ok := s.records.Get(rec.ID); ok {
			items[i] = current
		}
	}
	return &dto.SubmissionResult{Sku: sku, Items: items}, nil
}

func (s *ProcessService) processOne(ctx context.Context, sku string, item models.UploadItem, rec *models.ProcessingRecord) {
	s.records.MarkProcessing(rec.ID)

	var norm *Normalized
	var location string
	attempt := 0

	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.RecordRetryAttempt()
		}

		n, normErr := s.normalizer.Normalize(item)
		if normErr != nil {
			var appErr *appErrors.Error
			if errors.As(normErr, &appErr) && appErr.Code == appErrors.ErrUnsupportedFormat.Code {
				return retry.Permanent(normErr)
			}
			return normErr
		}
		norm = n

		if s.work != nil {
			if _, saveErr := s.work.Save(filepath.Join(sku, rec.ServerName), n.Data); saveErr != nil {
				s.logger.Warn("failed to stage working file", zap.String("file", rec.ServerName), zap.Error(saveErr))
			}
		}

		if s.relay == nil {
			location = ""
			return nil
		}
		loc, relayErr := s.relay.Send(ctx, n.Data, n.ContentType, rec.ServerName)
		if relayErr != nil {
			return relayErr
		}
		location = loc
		return nil
	})
	if err != nil {
		s.records.MarkFailed(rec.ID, err.Error())
		s.metrics.RecordFileProcessed("failed")
		s.logger.Warn("file processing failed",
			zap.String("sku", sku),
			zap.String("file", rec.ServerName),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return
	}

	stored := norm.Data
	preview := location
	switch {
	case preview == "":
		preview = "/preview/" + rec.ID
	case strings.HasPrefix(preview, "data:"):
		// The embedded representation becomes the stored form so the preview
		// endpoint can serve it directly.
		stored = []byte(preview)
	}
	if s.buffers != nil {
		if err := s.buffers.Set(ctx, rec.ID, stored); err != nil {
			s.logger.Warn("failed to buffer processed bytes", zap.String("id", rec.ID), zap.Error(err))
		}
		if err := s.buffers.Set(ctx, rec.ServerName, stored); err != nil {
			s.logger.Warn("failed to buffer processed bytes", zap.String("name", rec.ServerName), zap.Error(err))
		}
	}

	s.records.MarkDone(rec.ID, norm.Width, norm.Height, len(norm.Data), preview)
	s.metrics.RecordFileProcessed("done")
}

// Snapshot lists every record known to this process.
func (s *ProcessService) Snapshot() []models.ProcessingRecord {
	return s.records.Snapshot()
}

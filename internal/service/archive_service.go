package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
)

// ZipEntry is one file destined for the delivery archive.
type ZipEntry struct {
	Name string
	Data []byte
}

// ArchiveService packs processed files into a single ZIP for delivery.
type ArchiveService struct {
	logger *zap.Logger
}

func NewArchiveService(logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{logger: logger}
}

// BuildZipName derives the archive name from the SKU and a timestamp with
// the colons stripped so the name is safe on every filesystem.
func BuildZipName(sku string, now time.Time) string {
	return fmt.Sprintf("%s_%s.zip", sku, now.UTC().Format("2006-01-02T150405"))
}

// Build writes every entry into an in-memory ZIP using Deflate.
func (s *ArchiveService) Build(entries []ZipEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Deflate,
			Modified: time.Now().UTC(),
		})
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrArchive, fmt.Sprintf("failed to add %q to archive", entry.Name))
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, appErrors.Clone(appErrors.ErrArchive, fmt.Sprintf("failed to write %q into archive", entry.Name))
		}
	}
	if err := zw.Close(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrArchive, "failed to finalize archive")
	}

	s.logger.Debug("archive built",
		zap.Int("entries", len(entries)),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

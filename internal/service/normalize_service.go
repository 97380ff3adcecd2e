package service

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/gen2brain/heic"
	"go.uber.org/zap"
	"golang.org/x/image/webp"

	"github.com/noah-isme/sku-media-api/internal/models"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
)

const (
	jpegQuality = 90

	// Used when dimensions cannot be extracted; callers treat them as a
	// defined unknown rather than an error.
	defaultWidth  = 1920
	defaultHeight = 1080
)

// Normalized is the output of format normalization: bytes ready for the
// relay plus the content type they should be advertised with.
type Normalized struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// NormalizeService converts uploads into relay-ready images. JPEG passes
// through untouched, HEIC/HEIF is transcoded to JPEG, PNG and WebP pass
// through with their original content type.
type NormalizeService struct {
	logger *zap.Logger
}

// NewNormalizeService constructs the service.
func NewNormalizeService(logger *zap.Logger) *NormalizeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NormalizeService{logger: logger}
}

// Normalize produces JPEG (or pass-through) bytes with best-effort pixel
// dimensions. Unsupported media types fail with UNSUPPORTED_FORMAT.
func (s *NormalizeService) Normalize(item models.UploadItem) (*Normalized, error) {
	switch kind := mediaKind(item); kind {
	case "jpeg":
		width, height := s.jpegDimensions(item.Data)
		return &Normalized{Data: item.Data, ContentType: "image/jpeg", Width: width, Height: height}, nil
	case "heic":
		return s.transcodeHEIC(item)
	case "png":
		width, height := dimensionsOrDefault(func() (int, int, error) {
			cfg, err := png.DecodeConfig(bytes.NewReader(item.Data))
			return cfg.Width, cfg.Height, err
		})
		return &Normalized{Data: item.Data, ContentType: "image/png", Width: width, Height: height}, nil
	case "webp":
		width, height := dimensionsOrDefault(func() (int, int, error) {
			cfg, err := webp.DecodeConfig(bytes.NewReader(item.Data))
			return cfg.Width, cfg.Height, err
		})
		return &Normalized{Data: item.Data, ContentType: "image/webp", Width: width, Height: height}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat,
			fmt.Sprintf("unsupported format %q for file %q, use JPG/PNG/WebP/HEIC", item.ContentType, item.OriginalName))
	}
}

func (s *NormalizeService) transcodeHEIC(item models.UploadItem) (*Normalized, error) {
	img, err := heic.Decode(bytes.NewReader(item.Data))
	if err != nil {
		return nil, fmt.Errorf("decode heic %q: %w", item.OriginalName, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg for %q: %w", item.OriginalName, err)
	}

	// Dimensions come from the original HEIC metadata when available, the
	// decoded bounds otherwise.
	width, height := metaDimensions(item.Data)
	if width == 0 || height == 0 {
		bounds := img.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	return &Normalized{Data: buf.Bytes(), ContentType: "image/jpeg", Width: width, Height: height}, nil
}

func (s *NormalizeService) jpegDimensions(data []byte) (int, int) {
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width, cfg.Height
	}
	if w, h := metaDimensions(data); w > 0 && h > 0 {
		return w, h
	}
	return defaultWidth, defaultHeight
}

// metaDimensions probes embedded metadata for pixel dimensions. Returns
// zeros when nothing usable is present.
func metaDimensions(data []byte) (int, int) {
	meta, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return int(meta.ImageWidth), int(meta.ImageHeight)
}

func dimensionsOrDefault(probe func() (int, int, error)) (int, int) {
	if w, h, err := probe(); err == nil && w > 0 && h > 0 {
		return w, h
	}
	return defaultWidth, defaultHeight
}

// mediaKind buckets a declared media type, falling back to the file
// extension when the declaration is absent or generic.
func mediaKind(item models.UploadItem) string {
	ct := strings.ToLower(strings.TrimSpace(item.ContentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}

	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpeg"
	case strings.Contains(ct, "heic"), strings.Contains(ct, "heif"):
		return "heic"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	}

	if ct == "" || ct == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(item.OriginalName)) {
		case ".jpg", ".jpeg":
			return "jpeg"
		case ".heic", ".heif":
			return "heic"
		case ".png":
			return "png"
		case ".webp":
			return "webp"
		}
	}

	return ""
}

package models

import "fmt"

// RecordStatus tracks a file's progress through the pipeline.
type RecordStatus string

const (
	StatusQueued     RecordStatus = "queued"
	StatusProcessing RecordStatus = "processing"
	StatusDone       RecordStatus = "done"
	StatusFailed     RecordStatus = "failed"
)

// rank orders statuses so transitions can only move forward.
func (s RecordStatus) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusDone, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving to next respects the monotonic
// queued -> processing -> done|failed lifecycle.
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	if s == StatusDone || s == StatusFailed {
		return false
	}
	return next.rank() > s.rank()
}

// ProcessingRecord is one file's outcome, tracked through the pipeline and
// surfaced to the caller in submission order.
type ProcessingRecord struct {
	ID           string       `json:"id"`
	OriginalName string       `json:"originalName"`
	ServerName   string       `json:"serverName"`
	Status       RecordStatus `json:"status"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	Bytes        int          `json:"bytes,omitempty"`
	PreviewURL   string       `json:"previewUrl,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// UploadItem is one submitted file before processing. Both the name and the
// declared media type are user-supplied and untrusted.
type UploadItem struct {
	OriginalName string
	ContentType  string
	Data         []byte
}

// ServerFileName derives the deterministic server-side name for the file at
// the given zero-based position.
func ServerFileName(sku string, index int) string {
	return fmt.Sprintf("%s_%03d.jpg", sku, index+1)
}

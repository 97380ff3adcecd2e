package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the upload pipeline.
var (
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnsupportedFormat = New("UNSUPPORTED_FORMAT", http.StatusBadRequest, "unsupported image format, use JPG/PNG/WebP/HEIC")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrWebhookHTTP       = New("WEBHOOK_HTTP_ERROR", http.StatusBadGateway, "webhook request failed")
	ErrMessagingAPI      = New("MESSAGING_API_ERROR", http.StatusBadGateway, "messaging API request failed")
	ErrFileTooLarge      = New("FILE_TOO_LARGE", http.StatusRequestEntityTooLarge, "file too large for delivery")
	ErrProcessingFailed  = New("PROCESSING_FAILED", http.StatusUnprocessableEntity, "processing failed after retries")
	ErrArchive           = New("ARCHIVE_ERROR", http.StatusInternalServerError, "archive assembly failed")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

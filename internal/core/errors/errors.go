package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds of a split run. Every failure returned by the pipeline wraps exactly one of these.
var (
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrDecode           = errors.New("record decode failed")
	ErrStagingIO        = errors.New("staging i/o failed")
	ErrStagingCorrupt   = errors.New("staged chunk corrupt")
	ErrDestinationWrite = errors.New("destination write failed")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

const (
	HttpInternalError    = "internal_error"
	HttpInvalidJsonError = "invalid_json"
	HttpBusyError        = "busy"

	KindSourceUnreadable = "source_unreadable"
	KindDecode           = "decode_error"
	KindStagingIO        = "staging_io_error"
	KindStagingCorrupt   = "staging_corrupt"
	KindDestinationWrite = "destination_write_error"
	KindInvalidConfig    = "invalid_config"
	KindCanceled         = "canceled"
)

const maxChunkPreview = 256

// ErrorResponse is the error response body of the HTTP surface.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// DecodeError reports a record the source could not decode.
type DecodeError struct {
	// Index is the zero-based position of the record in the stream.
	Index int64
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// StagingCorruptError reports a staged chunk that no longer parses as a record.
type StagingCorruptError struct {
	Unit  string
	Line  int
	Chunk []byte
	Err   error
}

func (e *StagingCorruptError) Error() string {
	return fmt.Sprintf("staging unit %q line %d: %v (chunk: %q)", e.Unit, e.Line, e.Err, e.Preview())
}

func (e *StagingCorruptError) Unwrap() []error { return []error{ErrStagingCorrupt, e.Err} }

// Preview returns the offending chunk, truncated for logs.
func (e *StagingCorruptError) Preview() string {
	if len(e.Chunk) <= maxChunkPreview {
		return string(e.Chunk)
	}
	return string(e.Chunk[:maxChunkPreview]) + "..."
}

// Details surfaces structured fields for API error responses.
func (e *StagingCorruptError) Details() map[string]interface{} {
	return map[string]interface{}{
		"unit":  e.Unit,
		"line":  e.Line,
		"chunk": e.Preview(),
	}
}

// Wrap tags err with kind unless it already carries it. Returns nil for a nil err.
func Wrap(kind error, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}

// Kind maps an error to its stable kind name, used as metrics label and API error type.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnreadable):
		return KindSourceUnreadable
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrStagingCorrupt):
		return KindStagingCorrupt
	case errors.Is(err, ErrStagingIO):
		return KindStagingIO
	case errors.Is(err, ErrDestinationWrite):
		return KindDestinationWrite
	case errors.Is(err, ErrInvalidConfig):
		return KindInvalidConfig
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return HttpInternalError
	}
}

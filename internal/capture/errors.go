package capture

import (
	"fmt"
	"strings"
)

// ErrorCategory represents the classification of GStreamer errors for logging
type ErrorCategory int

const (
	// ErrCategoryFile indicates the file is missing, unreadable or not a media container
	ErrCategoryFile ErrorCategory = iota
	// ErrCategoryCodec indicates decode or negotiation failures
	ErrCategoryCodec
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryFile:
		return "file"
	case ErrCategoryCodec:
		return "codec"
	default:
		return "unknown"
	}
}

// PipelineError is a GStreamer bus error with its category
type PipelineError struct {
	Category ErrorCategory
	Debug    string
	Err      error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("capture: pipeline %s error: %v", e.Category, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ClassifyError categorizes a GStreamer error from its message and debug string.
// go-gst's GError does not expose the error domain, so classification is
// keyword based. Codec keywords win over file keywords because decodebin
// reports missing plugins as stream errors that also mention the file.
func ClassifyError(errMsg, debug string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debug)

	if containsAny(combined, codecKeywords) {
		return ErrCategoryCodec
	}
	if containsAny(combined, fileKeywords) {
		return ErrCategoryFile
	}
	return ErrCategoryUnknown
}

var codecKeywords = []string{
	"codec",
	"decode",
	"decoder",
	"negotiat",
	"caps",
	"missing plugin",
	"no suitable plugins",
}

var fileKeywords = []string{
	"resource not found",
	"no such file",
	"could not open",
	"permission denied",
	"could not read",
	"typefind",
	"could not determine type",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

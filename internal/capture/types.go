package capture

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the video file does not exist
	ErrNotFound = errors.New("capture: video file not found")
	// ErrClosed is returned when reading from a closed decoder
	ErrClosed = errors.New("capture: decoder closed")
)

// Frame represents a single decoded video frame
type Frame struct {
	// Seq is the monotonic sequence number for the session
	Seq uint64
	// Index is the frame position inside the file (0 after every rewind)
	Index uint64
	// Timestamp is when the frame was decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains interleaved RGB rows, Stride bytes apart
	Data []byte
	// Stride is the row length in bytes (>= Width × 3, rows may be padded)
	Stride int
	// Source identifies the camera
	Source string
	// TraceID is a unique identifier for log correlation
	TraceID string
}

// Decoder reads frames from a finite media source.
//
// Read returns io.EOF once the source is exhausted. Rewind repositions the
// source on its first frame so Read can continue. FrameRate is the native
// rate of the media in frames per second, or 0 while unknown.
type Decoder interface {
	Read(ctx context.Context) (Frame, error)
	Rewind() error
	FrameRate() float64
	Close() error
}

// Source is an endless frame producer.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Stats() Stats
	Close() error
}

// Stats contains per-session decode statistics
type Stats struct {
	// FrameCount is the total number of frames produced
	FrameCount uint64
	// Loops is the number of times the source wrapped to its first frame
	Loops uint64
	// Source identifies the camera
	Source string
	// Resolution is the frame resolution (e.g., "720x480")
	Resolution string
	// FrameRate is the native rate of the media (0 if the container has none)
	FrameRate float64
	// Started is when the session was opened
	Started time.Time
}

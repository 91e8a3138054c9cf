package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Loop turns a finite Decoder into an endless Source.
type Loop struct {
	dec    Decoder
	source string

	mu    sync.Mutex
	index uint64

	seq     uint64
	loops   uint64
	width   atomic.Int32
	height  atomic.Int32
	started time.Time
	closed  atomic.Bool
}

// NewLoop wraps dec. source names the camera in frames and logs.
func NewLoop(dec Decoder, source string) *Loop {
	return &Loop{
		dec:     dec,
		source:  source,
		started: time.Now(),
	}
}

// Next returns the next frame, rewinding the decoder on end of file.
//
// A decoder that reports EOF twice in a row without producing a frame is
// treated as empty and returns an error instead of spinning.
func (l *Loop) Next(ctx context.Context) (Frame, error) {
	if l.closed.Load() {
		return Frame{}, ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	frame, err := l.dec.Read(ctx)
	if errors.Is(err, io.EOF) {
		if err := l.dec.Rewind(); err != nil {
			return Frame{}, fmt.Errorf("capture: rewind %s: %w", l.source, err)
		}
		l.index = 0
		loops := atomic.AddUint64(&l.loops, 1)

		slog.Debug("capture: source looped",
			"source", l.source,
			"loops", loops,
			"frames", atomic.LoadUint64(&l.seq),
		)

		frame, err = l.dec.Read(ctx)
		if errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("capture: %s has no frames", l.source)
		}
	}
	if err != nil {
		return Frame{}, err
	}

	frame.Index = l.index
	l.index++
	frame.Seq = atomic.AddUint64(&l.seq, 1)
	if frame.Source == "" {
		frame.Source = l.source
	}
	l.width.Store(int32(frame.Width))
	l.height.Store(int32(frame.Height))

	return frame, nil
}

// Stats returns a snapshot of the session statistics
func (l *Loop) Stats() Stats {
	return Stats{
		FrameCount: atomic.LoadUint64(&l.seq),
		Loops:      atomic.LoadUint64(&l.loops),
		Source:     l.source,
		Resolution: fmt.Sprintf("%dx%d", l.width.Load(), l.height.Load()),
		FrameRate:  l.dec.FrameRate(),
		Started:    l.started,
	}
}

// Close releases the decoder. Safe to call multiple times.
func (l *Loop) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.dec.Close()
}

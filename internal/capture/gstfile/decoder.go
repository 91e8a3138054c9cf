package gstfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/care/homehub/internal/capture"
)

const (
	defaultStartTimeout = 5 * time.Second
	pullTimeout         = 100 * time.Millisecond
	busPollInterval     = 50 * time.Millisecond
)

// FileConfig contains configuration for looping a local video file
type FileConfig struct {
	// Path is the video file (required)
	Path string
	// Width and Height are the decoded output size
	Width  int
	Height int
	// Source names the camera
	Source string
	// StartTimeout bounds the wait for PLAYING (default: 5s)
	StartTimeout time.Duration
}

var frameRatePattern = regexp.MustCompile(`framerate=(?:\(fraction\))?(\d+)/(\d+)`)

var _ capture.Decoder = (*GstDecoder)(nil)

// GstDecoder implements capture.Decoder on top of a GStreamer file pipeline
type GstDecoder struct {
	cfg FileConfig

	mu        sync.Mutex
	elements  *PipelineElements
	bus       *gst.Bus
	frameRate float64

	bytesRead uint64
	closed    atomic.Bool
}

// OpenFile opens a video file and returns an endless looping source.
//
// Returns capture.ErrNotFound when the file does not exist and a
// *capture.PipelineError when GStreamer fails before the pipeline reaches
// PLAYING.
func OpenFile(ctx context.Context, cfg FileConfig) (*capture.Loop, error) {
	dec, err := NewGstDecoder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return capture.NewLoop(dec, cfg.Source), nil
}

// NewGstDecoder validates the file, builds the pipeline and starts it
func NewGstDecoder(ctx context.Context, cfg FileConfig) (*GstDecoder, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("capture: video path is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("capture: invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}

	info, err := os.Stat(cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", capture.ErrNotFound, cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("capture: stat %s: %w", cfg.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("capture: %s is a directory", cfg.Path)
	}

	d := &GstDecoder{cfg: cfg}
	if err := d.start(ctx); err != nil {
		return nil, err
	}

	slog.Info("capture: video source opened",
		"source", cfg.Source,
		"path", cfg.Path,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
	)

	return d, nil
}

// start creates a fresh pipeline and waits for PLAYING
func (d *GstDecoder) start(ctx context.Context) error {
	elements, err := CreateFilePipeline(d.cfg)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		DestroyPipeline(elements)
		return fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	bus := elements.Pipeline.GetPipelineBus()
	if err := waitPlaying(ctx, elements.Pipeline, bus, d.cfg.StartTimeout); err != nil {
		DestroyPipeline(elements)
		return err
	}

	d.mu.Lock()
	d.elements = elements
	d.bus = bus
	d.mu.Unlock()

	return nil
}

// waitPlaying polls the bus until the pipeline plays, fails or times out
func waitPlaying(ctx context.Context, pipeline *gst.Pipeline, bus *gst.Bus, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			return pipelineError(msg)

		case gst.MessageEOS:
			// Empty or very short file; Read reports it as io.EOF
			return nil

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePlaying {
					return nil
				}
			}
		}
	}

	return fmt.Errorf("capture: pipeline did not reach PLAYING within %s", timeout)
}

func pipelineError(msg *gst.Message) error {
	gerr := msg.ParseError()
	return &capture.PipelineError{
		Category: capture.ClassifyError(gerr.Error(), gerr.DebugString()),
		Debug:    gerr.DebugString(),
		Err:      gerr,
	}
}

// Read pulls the next decoded frame. Returns io.EOF at end of file.
func (d *GstDecoder) Read(ctx context.Context) (capture.Frame, error) {
	for {
		if d.closed.Load() {
			return capture.Frame{}, capture.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return capture.Frame{}, err
		}

		d.mu.Lock()
		elements, bus := d.elements, d.bus
		d.mu.Unlock()

		if err := drainBus(bus); err != nil {
			return capture.Frame{}, err
		}

		sample := elements.AppSink.TryPullSample(pullTimeout)
		if sample == nil {
			if elements.AppSink.IsEOS() {
				return capture.Frame{}, io.EOF
			}
			continue
		}
		d.recordFrameRate(sample)

		frame, ok := frameFromSample(sample, d.cfg.Width, d.cfg.Height, d.cfg.Source)
		if !ok {
			slog.Warn("capture: empty buffer received, skipping frame", "source", d.cfg.Source)
			continue
		}
		atomic.AddUint64(&d.bytesRead, uint64(len(frame.Data)))

		return frame, nil
	}
}

// recordFrameRate keeps the first framerate found in the sample caps
func (d *GstDecoder) recordFrameRate(sample *gst.Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frameRate > 0 {
		return
	}

	caps := sample.GetCaps()
	if caps == nil {
		return
	}
	if rate := parseFrameRate(caps.String()); rate > 0 {
		d.frameRate = rate
		slog.Debug("capture: native frame rate detected", "source", d.cfg.Source, "fps", rate)
	}
}

// FrameRate returns the native frame rate of the file, or 0 until the
// first sample arrives or when the container declares a variable rate.
func (d *GstDecoder) FrameRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameRate
}

// parseFrameRate extracts framerate=N/D from a caps string
func parseFrameRate(caps string) float64 {
	m := frameRatePattern.FindStringSubmatch(caps)
	if m == nil {
		return 0
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	den, err := strconv.ParseFloat(m[2], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

// drainBus returns the first error message pending on the bus, if any
func drainBus(bus *gst.Bus) error {
	for {
		msg := bus.TimedPop(0)
		if msg == nil {
			return nil
		}
		if msg.Type() == gst.MessageError {
			return pipelineError(msg)
		}
	}
}

// Rewind seeks back to the first frame. If the flushing seek is refused
// the pipeline is torn down and rebuilt from the file.
func (d *GstDecoder) Rewind() error {
	if d.closed.Load() {
		return capture.ErrClosed
	}

	d.mu.Lock()
	elements := d.elements
	d.mu.Unlock()

	if elements.Pipeline.SeekSimple(0, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return nil
	}

	slog.Warn("capture: seek refused, reopening video source",
		"source", d.cfg.Source,
		"path", d.cfg.Path,
	)

	if err := DestroyPipeline(elements); err != nil {
		slog.Warn("capture: failed to release pipeline before reopen", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.StartTimeout)
	defer cancel()
	return d.start(ctx)
}

// Close releases the pipeline. Safe to call multiple times.
func (d *GstDecoder) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.mu.Lock()
	elements := d.elements
	d.elements = nil
	d.bus = nil
	d.mu.Unlock()

	slog.Debug("capture: video source closed",
		"source", d.cfg.Source,
		"bytes_read", atomic.LoadUint64(&d.bytesRead),
	)

	return DestroyPipeline(elements)
}

// frameFromSample copies the sample buffer into a Frame.
// GStreamer reuses the buffer once the sample is released.
func frameFromSample(sample *gst.Sample, width, height int, source string) (capture.Frame, bool) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return capture.Frame{}, false
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return capture.Frame{}, false
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	// GStreamer pads RGB rows to 4-byte boundaries
	stride := width * 3
	if height > 0 && len(frameData)/height > stride {
		stride = len(frameData) / height
	}

	return capture.Frame{
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Data:      frameData,
		Stride:    stride,
		Source:    source,
		TraceID:   uuid.New().String(),
	}, true
}

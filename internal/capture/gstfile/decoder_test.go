package gstfile

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/care/homehub/internal/capture"
)

// writeTestClip renders a short MJPEG AVI with videotestsrc. Skips the test
// when the GStreamer runtime or its plugins are missing.
func writeTestClip(t *testing.T, frames int) string {
	t.Helper()
	initGStreamer()

	path := filepath.Join(t.TempDir(), "clip.avi")
	desc := fmt.Sprintf(
		"videotestsrc num-buffers=%d ! video/x-raw,width=64,height=48,framerate=10/1 ! jpegenc ! avimux ! filesink location=%s",
		frames, path,
	)

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		t.Skipf("gstreamer plugins unavailable: %v", err)
	}
	defer pipeline.SetState(gst.StateNull)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		t.Skipf("cannot start clip pipeline: %v", err)
	}

	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return path
		case gst.MessageError:
			t.Skipf("cannot render test clip: %v", msg.ParseError())
		}
	}

	t.Skip("timed out rendering test clip")
	return ""
}

func TestOpenFile_MissingFile(t *testing.T) {
	_, err := OpenFile(context.Background(), FileConfig{
		Path:   filepath.Join(t.TempDir(), "missing.mp4"),
		Width:  32,
		Height: 24,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, capture.ErrNotFound)
}

func TestNewGstDecoder_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  FileConfig
	}{
		{"empty path", FileConfig{Width: 32, Height: 24}},
		{"zero width", FileConfig{Path: "clip.avi", Height: 24}},
		{"negative height", FileConfig{Path: "clip.avi", Width: 32, Height: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGstDecoder(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		caps string
		want float64
	}{
		{"video/x-raw, format=(string)RGB, width=(int)32, height=(int)24, framerate=(fraction)30/1", 30},
		{"video/x-raw, framerate=(fraction)30000/1001", 30000.0 / 1001.0},
		{"video/x-raw,format=RGB,framerate=25/1", 25},
		{"video/x-raw, framerate=(fraction)0/1", 0},
		{"video/x-raw, framerate=(fraction)10/0", 0},
		{"video/x-raw, format=(string)RGB", 0},
	}

	for _, tt := range tests {
		t.Run(tt.caps, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseFrameRate(tt.caps), 1e-9)
		})
	}
}

func TestOpenFile_LoopsRealClip(t *testing.T) {
	const clipFrames = 5
	path := writeTestClip(t, clipFrames)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	loop, err := OpenFile(ctx, FileConfig{Path: path, Width: 32, Height: 24, Source: "test"})
	require.NoError(t, err)

	var (
		prev    uint64
		wrapped bool
	)
	for i := 0; i < 2*clipFrames+2; i++ {
		frame, err := loop.Next(ctx)
		require.NoError(t, err, "frame %d", i)

		assert.Equal(t, 32, frame.Width)
		assert.Equal(t, 24, frame.Height)
		assert.GreaterOrEqual(t, frame.Stride, 32*3)
		assert.GreaterOrEqual(t, len(frame.Data), frame.Stride*(frame.Height-1)+32*3)
		assert.NotEmpty(t, frame.TraceID)
		assert.Less(t, frame.Index, uint64(clipFrames))

		if i > 0 && frame.Index == 0 && prev > 0 {
			wrapped = true
		}
		prev = frame.Index
	}

	stats := loop.Stats()
	assert.True(t, wrapped, "index never wrapped to zero")
	assert.GreaterOrEqual(t, stats.Loops, uint64(1))
	assert.Equal(t, uint64(2*clipFrames+2), stats.FrameCount)
	assert.InDelta(t, 10.0, stats.FrameRate, 0.01)

	require.NoError(t, loop.Close())
	_, err = loop.Next(ctx)
	assert.ErrorIs(t, err, capture.ErrClosed)
}

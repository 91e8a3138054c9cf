package streamer

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/care/homehub/internal/capture"
)

const boundary = "frame"

// sessionStats accumulates per-viewer counters
type sessionStats struct {
	frames         uint64
	encodeFailures uint64
	meter          *capture.Meter
}

// handleStream serves GET /{camera} and GET /stream/{camera}
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")

	path, ok := s.cameras[camera]
	if !ok {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	src, err := s.open(ctx, camera, path)
	if err != nil {
		if errors.Is(err, capture.ErrNotFound) {
			slog.Warn("video file not found", "camera", camera, "path", path)
			http.Error(w, "video file not found", http.StatusNotFound)
			return
		}
		logOpenError(camera, path, err)
		http.Error(w, "failed to open video source", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("failed to close video source", "camera", camera, "error", err)
		}
	}()

	s.viewers.Add(1)
	s.sessions.Add(1)
	defer s.viewers.Add(-1)

	slog.Info("viewer connected",
		"camera", camera,
		"remote_addr", r.RemoteAddr,
		"active_viewers", s.viewers.Load(),
	)

	stats := &sessionStats{meter: capture.NewMeter(0)}
	started := time.Now()
	err = s.streamFrames(ctx, w, camera, src, stats)

	fps := stats.meter.Stats()
	srcStats := src.Stats()
	attrs := []any{
		"camera", camera,
		"remote_addr", r.RemoteAddr,
		"duration", time.Since(started).Round(time.Millisecond),
		"frames_served", stats.frames,
		"encode_failures", stats.encodeFailures,
		"loops", srcStats.Loops,
		"fps_mean", fps.FPSMean,
		"fps_stable", fps.IsStable,
	}
	if err != nil {
		slog.Error("stream aborted", append(attrs, "error", err)...)
		return
	}
	slog.Info("viewer disconnected", attrs...)
}

// streamFrames writes multipart JPEG parts until the client leaves or the
// source fails. Returns nil when the request context ends.
func (s *Server) streamFrames(ctx context.Context, w http.ResponseWriter, camera string, src capture.Source, stats *sessionStats) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil
	}

	// The native rate is known once the first frame is decoded
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		img, err := s.encoder.Encode(frame)
		if err != nil {
			stats.encodeFailures++
			slog.Warn("failed to encode frame, skipping",
				"camera", camera,
				"seq", frame.Seq,
				"error", err,
			)
			continue
		}

		s.cache.Store(camera, img, frame.Seq)

		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(img))},
		})
		if err != nil {
			return nil // client gone
		}
		if _, err := part.Write(img); err != nil {
			return nil
		}
		if err := rc.Flush(); err != nil {
			return nil
		}

		stats.frames++
		stats.meter.Observe(time.Now())
		s.framesServed.Add(1)

		slog.Debug("frame served",
			"camera", camera,
			"seq", frame.Seq,
			"index", frame.Index,
			"trace_id", frame.TraceID,
			"bytes", len(img),
		)

		if ticker == nil {
			interval := s.frameInterval(src)
			ticker = time.NewTicker(interval)
			slog.Debug("stream pacing", "camera", camera, "interval", interval)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func logOpenError(camera, path string, err error) {
	var pe *capture.PipelineError
	if errors.As(err, &pe) {
		slog.Error("failed to open video source",
			"camera", camera,
			"path", path,
			"category", pe.Category.String(),
			"debug", pe.Debug,
			"error", pe.Err,
		)
		return
	}
	slog.Error("failed to open video source",
		"camera", camera,
		"path", path,
		"error", err,
	)
}

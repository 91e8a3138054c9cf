// Package streamer serves looping video files as MJPEG camera streams.
//
// Every viewer gets an independent decode session. The only state shared
// between sessions is the latest-frame cache used by the snapshot endpoints.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/care/homehub/internal/capture"
	"github.com/care/homehub/internal/config"
	"github.com/care/homehub/internal/framecache"
	"github.com/care/homehub/internal/jpegenc"
)

// defaultFPS paces files whose container declares no frame rate
const defaultFPS = 25

// OpenFunc opens a looping frame source for a camera
type OpenFunc func(ctx context.Context, camera, path string) (capture.Source, error)

// Option customizes a Server
type Option func(*Server)

// WithOpenFunc sets how camera files are opened (required)
func WithOpenFunc(fn OpenFunc) Option {
	return func(s *Server) { s.open = fn }
}

// WithFrameInterval overrides the pacing derived from the configured fps
// and from the file's own frame rate
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) { s.interval = d }
}

// Server is the CCTV simulator HTTP service
type Server struct {
	cfg      config.StreamerConfig
	cameras  map[string]string
	open     OpenFunc
	encoder  *jpegenc.Encoder
	cache    *framecache.Cache
	interval time.Duration
	router   *chi.Mux

	started      time.Time
	viewers      atomic.Int64
	sessions     atomic.Uint64
	framesServed atomic.Uint64

	httpServer *http.Server
}

// New creates a streamer from a validated configuration
func New(cfg config.StreamerConfig, opts ...Option) (*Server, error) {
	encoder, err := jpegenc.New(cfg.Width, cfg.Height, cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("streamer: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		cameras:  cfg.CameraPaths(),
		encoder:  encoder,
		cache:    framecache.New(),
		interval: cfg.FrameInterval(),
		started:  time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.open == nil {
		return nil, fmt.Errorf("streamer: no source opener configured")
	}

	s.router = s.routes()
	// No WriteTimeout: streams stay open until the viewer leaves
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/latest-frame", s.handleLatestFrame)
	r.Get("/latest-frame/{camera}", s.handleLatestCameraFrame)
	r.Get("/stream/{camera}", s.handleStream)
	r.Get("/{camera}", s.handleStream)

	return r
}

// frameInterval returns the pacing for src: the configured rate when set,
// otherwise the file's native rate, otherwise defaultFPS.
func (s *Server) frameInterval(src capture.Source) time.Duration {
	if s.interval > 0 {
		return s.interval
	}
	rate := src.Stats().FrameRate
	if rate <= 0 {
		rate = defaultFPS
	}
	return time.Duration(float64(time.Second) / rate)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Cache exposes the latest-frame cache
func (s *Server) Cache() *framecache.Cache {
	return s.cache
}

// Cameras returns the configured camera names in sorted order
func (s *Server) Cameras() []string {
	names := make([]string, 0, len(s.cameras))
	for name := range s.cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start listens on the configured address and serves until Shutdown.
// Blocks; returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("streamer: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("streamer listening",
		"address", ln.Addr().String(),
		"cameras", s.Cameras(),
		"fps", s.cfg.FPS, // 0: each file's own rate
		"resolution", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("streamer: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting viewers and closes open streams. Serve returns
// at once if it is reached after Shutdown.
// Stream handlers exit when their request context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down streamer", "active_viewers", s.viewers.Load())

	if err := s.httpServer.Shutdown(ctx); err != nil {
		// Long-lived streams do not go idle; force them closed
		if closeErr := s.httpServer.Close(); closeErr != nil {
			slog.Warn("failed to close streamer connections", "error", closeErr)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("streamer: shutdown: %w", err)
		}
	}

	slog.Info("streamer stopped",
		"sessions_total", s.sessions.Load(),
		"frames_served", s.framesServed.Load(),
	)
	return nil
}

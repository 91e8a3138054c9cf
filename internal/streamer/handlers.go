package streamer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/care/homehub/internal/framecache"
)

// HealthStatus is the GET /health response body
type HealthStatus struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Cameras       []string `json:"cameras"`
	ActiveViewers int64    `json:"active_viewers"`
	SessionsTotal uint64   `json:"sessions_total"`
	FramesServed  uint64   `json:"frames_served"`
	CacheStores   uint64   `json:"cache_stores"`
}

// HealthCheck returns the current service counters
func (s *Server) HealthCheck() HealthStatus {
	return HealthStatus{
		Status:        "alive",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Cameras:       s.Cameras(),
		ActiveViewers: s.viewers.Load(),
		SessionsTotal: s.sessions.Load(),
		FramesServed:  s.framesServed.Load(),
		CacheStores:   s.cache.Stats().Stores,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.HealthCheck()); err != nil {
		slog.Debug("failed to write health response", "error", err)
	}
}

// handleLatestFrame serves the newest JPEG from any camera
func (s *Server) handleLatestFrame(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.cache.Latest()
	writeSnapshot(w, snap, ok)
}

// handleLatestCameraFrame serves the newest JPEG from one camera
func (s *Server) handleLatestCameraFrame(w http.ResponseWriter, r *http.Request) {
	camera := chi.URLParam(r, "camera")
	if _, ok := s.cameras[camera]; !ok {
		http.NotFound(w, r)
		return
	}

	snap, ok := s.cache.LatestFor(camera)
	writeSnapshot(w, snap, ok)
}

func writeSnapshot(w http.ResponseWriter, snap framecache.Snapshot, ok bool) {
	if !ok {
		http.Error(w, "no frame available yet", http.StatusServiceUnavailable)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.Itoa(len(snap.JPEG)))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("X-Camera", snap.Camera)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(snap.JPEG); err != nil {
		slog.Debug("failed to write snapshot", "camera", snap.Camera, "error", err)
	}
}

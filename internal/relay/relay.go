package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/care/homehub/internal/config"
	"github.com/care/homehub/internal/mpris"
)

// Relay runs the publisher, controller and forwarder on one broker
type Relay struct {
	cfg    *config.Config
	broker Broker

	publisher  *NowPlayingPublisher
	controller *PlaybackController
	forwarder  *NotificationForwarder

	started      time.Time
	wg           sync.WaitGroup
	healthServer *http.Server
}

// New wires the relay components from a validated configuration
func New(cfg *config.Config, broker Broker, bus PlayerBus, notifier Notifier) (*Relay, error) {
	urgency, err := mpris.ParseUrgency(cfg.Notify.Urgency)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	topics := cfg.MQTT.Topics

	return &Relay{
		cfg:     cfg,
		broker:  broker,
		started: time.Now(),
		publisher: NewNowPlayingPublisher(PublisherConfig{
			SongTopic:      topics.Song,
			ArtistTopic:    topics.Artist,
			StateTopic:     topics.State,
			StateEncoding:  cfg.Relay.StateEncoding,
			QoS:            cfg.MQTT.QoSFor("now_playing"),
			PollInterval:   cfg.Relay.PollInterval(),
			MinTitleLength: cfg.Relay.MinTitleLength,
		}, bus, broker),
		controller: NewPlaybackController(bus, cfg.Relay.CommandQueue),
		forwarder: NewNotificationForwarder(ForwarderConfig{
			Title:   cfg.Notify.Title,
			Urgency: urgency,
			Timeout: cfg.Notify.Timeout(),
		}, notifier),
	}, nil
}

// Run subscribes to the inbound topics and starts the loops. Blocks until
// ctx is cancelled and every loop has returned.
func (r *Relay) Run(ctx context.Context) error {
	topics := r.cfg.MQTT.Topics

	if err := r.broker.Subscribe(topics.PlaybackControl, r.cfg.MQTT.QoSFor("control"), r.controller.HandleMessage); err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", topics.PlaybackControl, err)
	}
	if err := r.broker.Subscribe(topics.Notification, r.cfg.MQTT.QoSFor("notification"), r.forwarder.HandleMessage); err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", topics.Notification, err)
	}

	r.goLoop(func() { r.controller.Run(ctx) })
	r.goLoop(func() { r.publisher.Run(ctx) })

	if interval := r.cfg.Relay.StatusInterval(); interval > 0 && topics.Telemetry != "" {
		r.goLoop(func() { r.runTelemetry(ctx, interval) })
	}

	if r.cfg.Relay.HealthAddr != "" {
		r.startHealthServer(r.cfg.Relay.HealthAddr)
	}

	slog.Info("media relay running",
		"instance_id", r.cfg.InstanceID,
		"control_topic", topics.PlaybackControl,
		"notification_topic", topics.Notification,
	)

	<-ctx.Done()
	r.wg.Wait()
	return nil
}

func (r *Relay) goLoop(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// runTelemetry publishes Status every interval
func (r *Relay) runTelemetry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publishStatus()
		}
	}
}

func (r *Relay) publishStatus() {
	topic := r.cfg.MQTT.Topics.Telemetry

	payload, err := Encode(r.Status(), r.cfg.Relay.StateEncoding)
	if err != nil {
		slog.Error("failed to encode relay status", "error", err)
		return
	}
	if err := r.broker.Publish(topic, r.cfg.MQTT.QoSFor("telemetry"), payload); err != nil {
		slog.Warn("failed to publish relay status", "topic", topic, "error", err)
	}
}

// Status returns the relay counters
func (r *Relay) Status() Status {
	cmd := r.controller.Stats()
	shown, failed := r.forwarder.Stats()

	return Status{
		InstanceID:          r.cfg.InstanceID,
		UptimeSeconds:       int64(time.Since(r.started).Seconds()),
		MQTTConnected:       r.broker.IsConnected(),
		CurrentTitle:        r.publisher.LastTitle(),
		TracksPublished:     r.publisher.Published(),
		CommandsHandled:     cmd.Handled,
		CommandsIgnored:     cmd.Ignored,
		CommandsDropped:     cmd.Dropped,
		CommandsNoPlayer:    cmd.NoPlayer,
		NotificationsShown:  shown,
		NotificationsFailed: failed,
		Timestamp:           time.Now(),
	}
}

// HealthStatus is the GET /health response body
type HealthStatus struct {
	Health string `json:"status"`
	Status
}

// HealthHandler serves GET /health. Degraded while the broker is down.
func (r *Relay) HealthHandler(w http.ResponseWriter, req *http.Request) {
	status := r.Status()

	body := HealthStatus{Health: "healthy", Status: status}
	if !status.MQTTConnected {
		body.Health = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write health response", "error", err)
	}
}

// startHealthServer starts the HTTP health server (non-blocking)
func (r *Relay) startHealthServer(addr string) {
	router := chi.NewRouter()
	router.Get("/health", r.HealthHandler)

	r.healthServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server", "address", addr)

	go func() {
		if err := r.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health check server failed", "error", err)
		}
	}()
}

// Shutdown stops the health server
func (r *Relay) Shutdown(ctx context.Context) error {
	if r.healthServer != nil {
		if err := r.healthServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("relay: health server shutdown: %w", err)
		}
	}

	status := r.Status()
	slog.Info("media relay stopped",
		"tracks_published", status.TracksPublished,
		"commands_handled", status.CommandsHandled,
		"notifications_shown", status.NotificationsShown,
	)
	return nil
}

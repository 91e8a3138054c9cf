package config

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)
	cameraNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

// reservedCameraNames collide with fixed HTTP routes.
var reservedCameraNames = map[string]bool{
	"health":       true,
	"latest-frame": true,
	"stream":       true,
}

// Validate checks the configuration and fills defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "homehub"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if err := validateStreamer(&cfg.Streamer); err != nil {
		return fmt.Errorf("streamer: %w", err)
	}
	if err := validateMQTT(&cfg.MQTT, cfg.InstanceID); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := validateRelay(&cfg.Relay); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	if err := validateNotify(&cfg.Notify); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	return nil
}

func validateStreamer(s *StreamerConfig) error {
	if s.Listen == "" {
		s.Listen = ":8066"
	}
	if s.FPS < 0 || s.FPS > 60 {
		return fmt.Errorf("fps must be between 0 and 60, got %.2f", s.FPS)
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("invalid resolution: %dx%d", s.Width, s.Height)
	}
	if s.Width == 0 || s.Height == 0 {
		s.Width, s.Height = 720, 480
	}
	if s.JPEGQuality < 0 || s.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", s.JPEGQuality)
	}
	if s.JPEGQuality == 0 {
		s.JPEGQuality = 80
	}

	for name, file := range s.Cameras {
		if !cameraNamePattern.MatchString(name) {
			return fmt.Errorf("camera '%s': name must match [A-Za-z0-9_-]+", name)
		}
		if reservedCameraNames[strings.ToLower(name)] {
			return fmt.Errorf("camera '%s': name is reserved", name)
		}
		if file == "" {
			return fmt.Errorf("camera '%s': video file is required", name)
		}
	}

	return nil
}

func validateMQTT(m *MQTTConfig, instanceID string) error {
	if m.Broker == "" {
		m.Broker = "localhost:1883"
	}
	if strings.Contains(m.Broker, "://") {
		return fmt.Errorf("broker must be host:port, got %q", m.Broker)
	}
	if m.ClientID == "" {
		m.ClientID = instanceID + "-relay"
	}

	if m.Topics.PlaybackControl == "" {
		m.Topics.PlaybackControl = "c/playbackcontrol"
	}
	if m.Topics.Notification == "" {
		m.Topics.Notification = "c/notify"
	}
	if m.Topics.Song == "" {
		m.Topics.Song = "c/Song"
	}
	if m.Topics.Artist == "" {
		m.Topics.Artist = "c/Artist"
	}

	if m.QoS == nil {
		m.QoS = map[string]byte{
			"control":      1,
			"notification": 1,
			"now_playing":  0,
			"telemetry":    0,
		}
	}
	for name, qos := range m.QoS {
		if qos > 2 {
			return fmt.Errorf("qos '%s' must be 0, 1 or 2, got %d", name, qos)
		}
	}

	return nil
}

func validateRelay(r *RelayConfig) error {
	if r.PollIntervalMS < 0 {
		return fmt.Errorf("poll_interval_ms must be >= 0")
	}
	if r.PollIntervalMS == 0 {
		r.PollIntervalMS = 1000
	}
	if r.MinTitleLength <= 0 {
		r.MinTitleLength = 5
	}
	switch r.StateEncoding {
	case "":
		r.StateEncoding = "json"
	case "json", "msgpack":
	default:
		return fmt.Errorf("state_encoding must be 'json' or 'msgpack', got %q", r.StateEncoding)
	}
	if r.StatusIntervalS < 0 {
		return fmt.Errorf("status_interval_s must be >= 0")
	}
	if r.CommandQueue <= 0 {
		r.CommandQueue = 10
	}
	return nil
}

func validateNotify(n *NotifyConfig) error {
	if n.AppName == "" {
		n.AppName = "homehub"
	}
	if n.Title == "" {
		n.Title = "Home Hub"
	}
	switch n.Urgency {
	case "":
		n.Urgency = "normal"
	case "low", "normal", "critical":
	default:
		return fmt.Errorf("urgency must be low, normal or critical, got %q", n.Urgency)
	}
	if n.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must be >= 0")
	}
	if n.TimeoutMS == 0 {
		n.TimeoutMS = 5000
	}
	return nil
}

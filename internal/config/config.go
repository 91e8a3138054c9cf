package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the YAML file.
const (
	EnvMQTTBroker = "HOMEHUB_MQTT_BROKER"
	EnvVideoDir   = "HOMEHUB_VIDEO_DIR"
)

// Config represents the complete homehub configuration.
// Both binaries load the same file and use their own sections.
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Streamer         StreamerConfig `yaml:"streamer"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	Relay            RelayConfig    `yaml:"relay"`
	Notify           NotifyConfig   `yaml:"notify"`
}

// StreamerConfig contains the CCTV simulator settings
type StreamerConfig struct {
	Listen      string            `yaml:"listen"`       // HTTP listen address
	VideoDir    string            `yaml:"video_dir"`    // base directory for relative camera paths
	Cameras     map[string]string `yaml:"cameras"`      // camera name -> video file
	FPS         float64           `yaml:"fps"`          // pacing rate (0: the file's own rate)
	Width       int               `yaml:"width"`        // output width (default: 720)
	Height      int               `yaml:"height"`       // output height (default: 480)
	JPEGQuality int               `yaml:"jpeg_quality"` // 1-100 (default: 80)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string          `yaml:"broker"` // host:port
	ClientID string          `yaml:"client_id"`
	Username string          `yaml:"username"`
	Password string          `yaml:"password"`
	Topics   MQTTTopics      `yaml:"topics"`
	QoS      map[string]byte `yaml:"qos"`
}

// MQTTTopics contains the topic names used by the relay
type MQTTTopics struct {
	PlaybackControl string `yaml:"playback_control"`
	Notification    string `yaml:"notification"`
	Song            string `yaml:"song"`
	Artist          string `yaml:"artist"`
	State           string `yaml:"state"`     // optional combined now-playing document
	Telemetry       string `yaml:"telemetry"` // optional relay status
}

// RelayConfig contains the media relay loop settings
type RelayConfig struct {
	PollIntervalMS  int    `yaml:"poll_interval_ms"`  // now-playing poll (default: 1000)
	MinTitleLength  int    `yaml:"min_title_length"`  // default: 5
	StateEncoding   string `yaml:"state_encoding"`    // json, msgpack
	StatusIntervalS int    `yaml:"status_interval_s"` // 0 disables telemetry
	CommandQueue    int    `yaml:"command_queue"`     // buffered playback commands (default: 10)
	HealthAddr      string `yaml:"health_addr"`       // empty disables the health server
}

// NotifyConfig contains desktop notification settings
type NotifyConfig struct {
	AppName   string `yaml:"app_name"`
	Title     string `yaml:"title"`
	Urgency   string `yaml:"urgency"` // low, normal, critical
	TimeoutMS int    `yaml:"timeout_ms"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvMQTTBroker); ok && v != "" {
		cfg.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv(EnvVideoDir); ok && v != "" {
		cfg.Streamer.VideoDir = v
	}
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (c *Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// CameraPaths resolves every camera file against VideoDir.
func (s StreamerConfig) CameraPaths() map[string]string {
	paths := make(map[string]string, len(s.Cameras))
	for name, file := range s.Cameras {
		if filepath.IsAbs(file) || s.VideoDir == "" {
			paths[name] = file
			continue
		}
		paths[name] = filepath.Join(s.VideoDir, file)
	}
	return paths
}

// FrameInterval is the pacing delay between two streamed frames.
// Returns 0 when the streamer should follow each file's frame rate.
func (s StreamerConfig) FrameInterval() time.Duration {
	if s.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.FPS)
}

// PollInterval returns the now-playing poll period.
func (r RelayConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMS) * time.Millisecond
}

// StatusInterval returns the telemetry period, zero when disabled.
func (r RelayConfig) StatusInterval() time.Duration {
	return time.Duration(r.StatusIntervalS) * time.Second
}

// Timeout returns the notification expiry.
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutMS) * time.Millisecond
}

// BrokerURL returns the paho broker URL.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s", m.Broker)
}

// QoSFor returns the QoS level for a named topic class.
func (m MQTTConfig) QoSFor(name string) byte {
	if qos, ok := m.QoS[name]; ok {
		return qos
	}
	return 0
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
streamer:
  cameras:
    door: door.mp4
`))
	require.NoError(t, err)

	assert.Equal(t, "homehub", cfg.InstanceID)
	assert.Equal(t, ":8066", cfg.Streamer.Listen)
	assert.Zero(t, cfg.Streamer.FPS)
	assert.Equal(t, 720, cfg.Streamer.Width)
	assert.Equal(t, 480, cfg.Streamer.Height)
	assert.Equal(t, 80, cfg.Streamer.JPEGQuality)
	assert.Zero(t, cfg.Streamer.FrameInterval(), "0 fps paces at the file's own rate")

	assert.Equal(t, "localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL())
	assert.Equal(t, "homehub-relay", cfg.MQTT.ClientID)
	assert.Equal(t, "c/playbackcontrol", cfg.MQTT.Topics.PlaybackControl)
	assert.Equal(t, "c/Song", cfg.MQTT.Topics.Song)
	assert.Equal(t, "c/Artist", cfg.MQTT.Topics.Artist)
	assert.Equal(t, "c/notify", cfg.MQTT.Topics.Notification)
	assert.Empty(t, cfg.MQTT.Topics.State)
	assert.Equal(t, byte(1), cfg.MQTT.QoSFor("control"))
	assert.Equal(t, byte(0), cfg.MQTT.QoSFor("unknown"))

	assert.Equal(t, time.Second, cfg.Relay.PollInterval())
	assert.Equal(t, 5, cfg.Relay.MinTitleLength)
	assert.Equal(t, "json", cfg.Relay.StateEncoding)
	assert.Zero(t, cfg.Relay.StatusInterval())
	assert.Equal(t, 10, cfg.Relay.CommandQueue)

	assert.Equal(t, "normal", cfg.Notify.Urgency)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad instance id", "instance_id: Home_Hub"},
		{"reserved camera", "streamer:\n  cameras:\n    latest-frame: a.mp4"},
		{"camera with slash", "streamer:\n  cameras:\n    a/b: a.mp4"},
		{"empty camera file", "streamer:\n  cameras:\n    door: ''"},
		{"fps too high", "streamer:\n  fps: 120"},
		{"jpeg quality", "streamer:\n  jpeg_quality: 101"},
		{"broker with scheme", "mqtt:\n  broker: tcp://localhost:1883"},
		{"qos out of range", "mqtt:\n  qos:\n    control: 3"},
		{"state encoding", "relay:\n  state_encoding: xml"},
		{"urgency", "notify:\n  urgency: loud"},
		{"not yaml", "streamer: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvMQTTBroker, "broker.lan:1884")
	t.Setenv(EnvVideoDir, "/srv/videos")

	cfg, err := Parse([]byte(`
mqtt:
  broker: localhost:1883
streamer:
  video_dir: ./videos
  cameras:
    door: door.mp4
    lawn: /abs/lawn.mp4
`))
	require.NoError(t, err)

	assert.Equal(t, "broker.lan:1884", cfg.MQTT.Broker)
	paths := cfg.Streamer.CameraPaths()
	assert.Equal(t, filepath.Join("/srv/videos", "door.mp4"), paths["door"])
	assert.Equal(t, "/abs/lawn.mp4", paths["lawn"])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "homehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instance_id: den\nshutdown_timeout_s: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "den", cfg.InstanceID)
	assert.Equal(t, "den-relay", cfg.MQTT.ClientID)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "homehub.yaml"))
	require.NoError(t, err)

	assert.Len(t, cfg.Streamer.Cameras, 3)
	assert.Equal(t, "c/playbackcontrol", cfg.MQTT.Topics.PlaybackControl)
	assert.Empty(t, cfg.Relay.HealthAddr)
}

func TestParse_FixedFrameRate(t *testing.T) {
	cfg, err := Parse([]byte("streamer:\n  fps: 20\n"))
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Streamer.FPS)
	assert.Equal(t, 50*time.Millisecond, cfg.Streamer.FrameInterval())
}

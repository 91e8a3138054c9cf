package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Payload encodings for the state and telemetry topics
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// NowPlaying is the combined track document published to the state topic
type NowPlaying struct {
	Player    string    `json:"player" msgpack:"player"`
	Title     string    `json:"title" msgpack:"title"`
	Artists   []string  `json:"artists" msgpack:"artists"`
	Album     string    `json:"album,omitempty" msgpack:"album,omitempty"`
	Status    string    `json:"status,omitempty" msgpack:"status,omitempty"`
	LengthMS  int64     `json:"length_ms,omitempty" msgpack:"length_ms,omitempty"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Status is the relay telemetry document
type Status struct {
	InstanceID          string    `json:"instance_id" msgpack:"instance_id"`
	UptimeSeconds       int64     `json:"uptime_seconds" msgpack:"uptime_seconds"`
	MQTTConnected       bool      `json:"mqtt_connected" msgpack:"mqtt_connected"`
	CurrentTitle        string    `json:"current_title,omitempty" msgpack:"current_title,omitempty"`
	TracksPublished     uint64    `json:"tracks_published" msgpack:"tracks_published"`
	CommandsHandled     uint64    `json:"commands_handled" msgpack:"commands_handled"`
	CommandsIgnored     uint64    `json:"commands_ignored" msgpack:"commands_ignored"`
	CommandsDropped     uint64    `json:"commands_dropped" msgpack:"commands_dropped"`
	CommandsNoPlayer    uint64    `json:"commands_no_player" msgpack:"commands_no_player"`
	NotificationsShown  uint64    `json:"notifications_shown" msgpack:"notifications_shown"`
	NotificationsFailed uint64    `json:"notifications_failed" msgpack:"notifications_failed"`
	Timestamp           time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Encode serializes v with the named encoding
func Encode(v any, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingMsgpack:
		data, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal msgpack: %w", err)
		}
		return data, nil
	case EncodingJSON, "":
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal json: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

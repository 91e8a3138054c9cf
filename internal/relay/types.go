// Package relay bridges desktop media players and notifications to MQTT.
//
// Three components share one broker connection:
//
//	NowPlayingPublisher   MPRIS metadata  →  c/Song, c/Artist (+ optional state)
//	PlaybackController    c/playbackcontrol  →  PlayPause / Next / Previous
//	NotificationForwarder c/notify  →  org.freedesktop.Notifications
package relay

import (
	"time"

	"github.com/care/homehub/internal/mpris"
	"github.com/care/homehub/internal/mqttclient"
)

// Broker is the MQTT connection used by the relay
type Broker interface {
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(topic string, qos byte, handler mqttclient.MessageHandler) error
	IsConnected() bool
}

// PlayerBus discovers media players
type PlayerBus interface {
	// ListPlayers returns MPRIS bus names in bus order
	ListPlayers() ([]string, error)
	// Player returns a handle for one bus name
	Player(service string) (Player, error)
}

// Player is one media player
type Player interface {
	Name() string
	Metadata() (mpris.Metadata, error)
	PlaybackStatus() (string, error)
	PlayPause() error
	Next() error
	Previous() error
}

// Notifier shows desktop notifications
type Notifier interface {
	Notify(title, body string, urgency mpris.Urgency, timeout time.Duration) (uint32, error)
}

// MPRISBus adapts *mpris.Bus to PlayerBus
type MPRISBus struct {
	Bus *mpris.Bus
}

// ListPlayers implements PlayerBus
func (b MPRISBus) ListPlayers() ([]string, error) {
	return b.Bus.ListPlayers()
}

// Player implements PlayerBus
func (b MPRISBus) Player(service string) (Player, error) {
	p, err := b.Bus.Player(service)
	if err != nil {
		return nil, err
	}
	return p, nil
}

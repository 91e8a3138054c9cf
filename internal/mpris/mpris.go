// Package mpris talks to desktop media players and the notification daemon
// over the D-Bus session bus.
package mpris

import (
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	// BusNamePrefix identifies MPRIS media players on the session bus
	BusNamePrefix = "org.mpris.MediaPlayer2."

	objectPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

var (
	// ErrNoPlayer is returned when no MPRIS player is on the bus
	ErrNoPlayer = errors.New("mpris: no media player found")
	// ErrPlayerGone is returned when a bus name has no owner anymore
	ErrPlayerGone = errors.New("mpris: player left the bus")
)

// Bus is a session bus connection
type Bus struct {
	conn *dbus.Conn
}

// Connect opens a private connection to the session bus
func Connect() (*Bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("mpris: connect session bus: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// Close closes the bus connection
func (b *Bus) Close() error {
	return b.conn.Close()
}

// ListPlayers returns MPRIS bus names in bus order
func (b *Bus) ListPlayers() ([]string, error) {
	var names []string
	if err := b.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("mpris: list bus names: %w", err)
	}
	return FilterPlayers(names), nil
}

// FilterPlayers keeps the names carrying the MPRIS prefix, preserving order
func FilterPlayers(names []string) []string {
	players := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, BusNamePrefix) {
			players = append(players, name)
		}
	}
	return players
}

// Player returns a handle to the player owning service
func (b *Bus) Player(service string) (*Player, error) {
	var owned bool
	err := b.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, service).Store(&owned)
	if err != nil {
		return nil, fmt.Errorf("mpris: resolve %s: %w", service, err)
	}
	if !owned {
		return nil, fmt.Errorf("%w: %s", ErrPlayerGone, service)
	}

	return &Player{
		service: service,
		obj:     b.conn.Object(service, objectPath),
	}, nil
}

// Player is one MPRIS media player
type Player struct {
	service string
	obj     dbus.BusObject
}

// Name returns the player's bus name
func (p *Player) Name() string {
	return p.service
}

// Identity is the bus name without the MPRIS prefix (e.g. "spotify")
func (p *Player) Identity() string {
	return strings.TrimPrefix(p.service, BusNamePrefix)
}

// Metadata reads the current track
func (p *Player) Metadata() (Metadata, error) {
	v, err := p.obj.GetProperty(playerInterface + ".Metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("mpris: %s metadata: %w", p.service, err)
	}

	m, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return Metadata{}, fmt.Errorf("mpris: %s metadata has type %s", p.service, v.Signature())
	}
	return ParseMetadata(m), nil
}

// PlaybackStatus returns "Playing", "Paused" or "Stopped"
func (p *Player) PlaybackStatus() (string, error) {
	v, err := p.obj.GetProperty(playerInterface + ".PlaybackStatus")
	if err != nil {
		return "", fmt.Errorf("mpris: %s playback status: %w", p.service, err)
	}
	status, _ := v.Value().(string)
	return status, nil
}

// PlayPause toggles playback
func (p *Player) PlayPause() error {
	return p.call("PlayPause")
}

// Next skips to the next track
func (p *Player) Next() error {
	return p.call("Next")
}

// Previous skips to the previous track
func (p *Player) Previous() error {
	return p.call("Previous")
}

func (p *Player) call(method string) error {
	if err := p.obj.Call(playerInterface+"."+method, 0).Err; err != nil {
		return fmt.Errorf("mpris: %s %s: %w", p.service, method, err)
	}
	return nil
}

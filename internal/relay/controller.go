package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/care/homehub/internal/mpris"
)

// Playback command codes received on the control topic
const (
	CodePlayPause = "1"
	CodeNext      = "2"
	CodePrevious  = "3"
)

// ErrUnknownCommand is returned for codes outside {"1","2","3"}
var ErrUnknownCommand = errors.New("unknown playback command")

type action struct {
	name string
	do   func(Player) error
}

var actions = map[string]action{
	CodePlayPause: {"play_pause", Player.PlayPause},
	CodeNext:      {"next", Player.Next},
	CodePrevious:  {"previous", Player.Previous},
}

// PlaybackController executes playback commands on the active player.
// Commands are queued and processed by a single goroutine.
type PlaybackController struct {
	bus      PlayerBus
	commands chan string

	mu     sync.Mutex
	player Player

	handled  atomic.Uint64
	ignored  atomic.Uint64
	dropped  atomic.Uint64
	noPlayer atomic.Uint64
}

// NewPlaybackController creates a controller with a bounded command queue
func NewPlaybackController(bus PlayerBus, queueSize int) *PlaybackController {
	if queueSize <= 0 {
		queueSize = 10
	}
	return &PlaybackController{
		bus:      bus,
		commands: make(chan string, queueSize),
	}
}

// HandleMessage queues a command delivered by MQTT. Never blocks.
func (c *PlaybackController) HandleMessage(topic string, payload []byte) {
	code := strings.TrimSpace(string(payload))

	slog.Info("playback command received", "topic", topic, "code", code)

	select {
	case c.commands <- code:
	default:
		c.dropped.Add(1)
		slog.Warn("command queue full, dropping command", "code", code)
	}
}

// Run processes queued commands until ctx is cancelled
func (c *PlaybackController) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case code := <-c.commands:
			if err := c.Execute(code); err != nil {
				slog.Warn("playback command failed", "code", code, "error", err)
			}
		}
	}
}

// Execute runs one command synchronously. An unknown code never touches a
// player. Any player error invalidates the cached handle so the next
// command resolves the player list again.
func (c *PlaybackController) Execute(code string) error {
	act, ok := actions[code]
	if !ok {
		c.ignored.Add(1)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	player, err := c.resolveLocked()
	if err != nil {
		c.noPlayer.Add(1)
		return err
	}

	if err := act.do(player); err != nil {
		c.player = nil
		return fmt.Errorf("%s on %s: %w", act.name, player.Name(), err)
	}

	c.handled.Add(1)
	slog.Info("playback command executed", "action", act.name, "player", player.Name())
	return nil
}

// resolveLocked returns the cached player or picks the first one the bus
// can hand out. Caller holds c.mu.
func (c *PlaybackController) resolveLocked() (Player, error) {
	if c.player != nil {
		return c.player, nil
	}

	services, err := c.bus.ListPlayers()
	if err != nil {
		return nil, err
	}

	for _, service := range services {
		player, err := c.bus.Player(service)
		if err != nil {
			slog.Debug("skipping media player", "player", service, "error", err)
			continue
		}
		c.player = player
		slog.Info("found active player", "player", service)
		return player, nil
	}

	return nil, mpris.ErrNoPlayer
}

// ControllerStats contains command counters
type ControllerStats struct {
	Handled  uint64
	Ignored  uint64
	Dropped  uint64 // queue full
	NoPlayer uint64 // no player could be resolved
}

// Stats returns a snapshot of the command counters
func (c *PlaybackController) Stats() ControllerStats {
	return ControllerStats{
		Handled:  c.handled.Load(),
		Ignored:  c.ignored.Load(),
		Dropped:  c.dropped.Load(),
		NoPlayer: c.noPlayer.Load(),
	}
}

package relay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/care/homehub/internal/mpris"
)

const (
	unknownTitle  = "Unknown Title"
	unknownArtist = "Unknown Artist"
)

// PublisherConfig configures the now-playing publisher
type PublisherConfig struct {
	SongTopic      string
	ArtistTopic    string
	StateTopic     string // empty disables the state document
	StateEncoding  string
	QoS            byte
	PollInterval   time.Duration
	MinTitleLength int
}

// NowPlayingPublisher polls media players and publishes track changes
type NowPlayingPublisher struct {
	cfg    PublisherConfig
	bus    PlayerBus
	broker Broker

	mu        sync.Mutex
	lastTitle string

	published atomic.Uint64
}

// NewNowPlayingPublisher creates a publisher
func NewNowPlayingPublisher(cfg PublisherConfig, bus PlayerBus, broker Broker) *NowPlayingPublisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &NowPlayingPublisher{cfg: cfg, bus: bus, broker: broker}
}

// Run polls until ctx is cancelled
func (p *NowPlayingPublisher) Run(ctx context.Context) {
	slog.Info("now-playing publisher started",
		"interval", p.cfg.PollInterval,
		"song_topic", p.cfg.SongTopic,
		"artist_topic", p.cfg.ArtistTopic,
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.Poll()

		select {
		case <-ctx.Done():
			slog.Info("now-playing publisher stopped", "tracks_published", p.published.Load())
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one cycle: the first player whose metadata can be read is
// reported; players that fail are skipped for this cycle.
func (p *NowPlayingPublisher) Poll() {
	services, err := p.bus.ListPlayers()
	if err != nil {
		slog.Warn("failed to list media players", "error", err)
		return
	}

	for _, service := range services {
		player, err := p.bus.Player(service)
		if err != nil {
			slog.Warn("failed to get media player", "player", service, "error", err)
			continue
		}

		md, err := player.Metadata()
		if err != nil {
			slog.Warn("failed to read metadata", "player", service, "error", err)
			continue
		}

		p.report(player, md)
		return
	}
}

// report publishes md when its title is new and long enough. Defaults
// replace only keys the player did not send; an explicitly empty title is
// filtered by the length check.
func (p *NowPlayingPublisher) report(player Player, md mpris.Metadata) {
	title := md.Title
	if title == "" && !md.HasTitle {
		title = unknownTitle
	}
	artists := md.Artists
	if len(artists) == 0 && !md.HasArtists {
		artists = []string{unknownArtist}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if title == p.lastTitle || utf8.RuneCountInString(title) < p.cfg.MinTitleLength {
		return
	}

	artist := strings.Join(artists, ", ")
	if err := p.broker.Publish(p.cfg.SongTopic, p.cfg.QoS, []byte(title)); err != nil {
		slog.Error("failed to publish song", "topic", p.cfg.SongTopic, "error", err)
		return
	}
	if err := p.broker.Publish(p.cfg.ArtistTopic, p.cfg.QoS, []byte(artist)); err != nil {
		slog.Error("failed to publish artist", "topic", p.cfg.ArtistTopic, "error", err)
		return
	}

	p.lastTitle = title
	p.published.Add(1)

	slog.Info("now playing",
		"player", player.Name(),
		"title", title,
		"artist", artist,
	)

	if p.cfg.StateTopic != "" {
		p.publishState(player, md, title, artists)
	}
}

func (p *NowPlayingPublisher) publishState(player Player, md mpris.Metadata, title string, artists []string) {
	status, err := player.PlaybackStatus()
	if err != nil {
		slog.Debug("failed to read playback status", "player", player.Name(), "error", err)
	}

	payload, err := Encode(NowPlaying{
		Player:    strings.TrimPrefix(player.Name(), mpris.BusNamePrefix),
		Title:     title,
		Artists:   artists,
		Album:     md.Album,
		Status:    status,
		LengthMS:  md.Length.Milliseconds(),
		Timestamp: time.Now(),
	}, p.cfg.StateEncoding)
	if err != nil {
		slog.Error("failed to encode now-playing state", "error", err)
		return
	}

	if err := p.broker.Publish(p.cfg.StateTopic, p.cfg.QoS, payload); err != nil {
		slog.Error("failed to publish now-playing state", "topic", p.cfg.StateTopic, "error", err)
	}
}

// LastTitle returns the most recently published title
func (p *NowPlayingPublisher) LastTitle() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTitle
}

// Published returns how many track changes were published
func (p *NowPlayingPublisher) Published() uint64 {
	return p.published.Load()
}

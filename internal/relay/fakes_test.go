package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/care/homehub/internal/mpris"
	"github.com/care/homehub/internal/mqttclient"
)

type publishedMessage struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeBroker struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	messages   []publishedMessage
	handlers   map[string]mqttclient.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{connected: true, handlers: make(map[string]mqttclient.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, qos byte, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.messages = append(b.messages, publishedMessage{topic, qos, payload})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqttclient.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) deliver(topic, payload string) bool {
	b.mu.Lock()
	h, ok := b.handlers[topic]
	b.mu.Unlock()
	if ok {
		h(topic, []byte(payload))
	}
	return ok
}

func (b *fakeBroker) payloads(topic string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.messages {
		if m.topic == topic {
			out = append(out, string(m.payload))
		}
	}
	return out
}

func (b *fakeBroker) raw(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, m := range b.messages {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

type fakePlayer struct {
	mu          sync.Mutex
	name        string
	md          mpris.Metadata
	metadataErr error
	actionErr   error
	calls       []string
}

func (p *fakePlayer) Name() string { return p.name }

func (p *fakePlayer) Metadata() (mpris.Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.md, p.metadataErr
}

func (p *fakePlayer) PlaybackStatus() (string, error) { return "Playing", nil }

func (p *fakePlayer) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.actionErr
}

func (p *fakePlayer) PlayPause() error { return p.record("PlayPause") }
func (p *fakePlayer) Next() error      { return p.record("Next") }
func (p *fakePlayer) Previous() error  { return p.record("Previous") }

func (p *fakePlayer) setTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.md.Title = title
}

func (p *fakePlayer) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakeBus struct {
	mu          sync.Mutex
	order       []string
	players     map[string]*fakePlayer
	listErr     error
	listCalls   int
	unreachable map[string]bool
}

func newFakeBus(players ...*fakePlayer) *fakeBus {
	b := &fakeBus{players: make(map[string]*fakePlayer), unreachable: make(map[string]bool)}
	for _, p := range players {
		b.order = append(b.order, p.name)
		b.players[p.name] = p
	}
	return b
}

func (b *fakeBus) ListPlayers() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]string(nil), b.order...), nil
}

func (b *fakeBus) Player(service string) (Player, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unreachable[service] {
		return nil, mpris.ErrPlayerGone
	}
	p, ok := b.players[service]
	if !ok {
		return nil, errors.New("no such player")
	}
	return p, nil
}

func (b *fakeBus) lists() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

type notification struct {
	title   string
	body    string
	urgency mpris.Urgency
	timeout time.Duration
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	shown []notification
}

func (n *fakeNotifier) Notify(title, body string, urgency mpris.Urgency, timeout time.Duration) (uint32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return 0, n.err
	}
	n.shown = append(n.shown, notification{title, body, urgency, timeout})
	return uint32(len(n.shown)), nil
}

package mqttclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/care/homehub/internal/config"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func completed(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func pending() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakePaho records calls and runs OnConnect synchronously
type fakePaho struct {
	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	connectToken mqtt.Token
	publishErr   error
	connected    bool
	published    map[string][]byte
	handlers     map[string]mqtt.MessageHandler
	subscribes   map[string]int
	disconnects  int
}

func newFakePaho() *fakePaho {
	return &fakePaho{
		connectToken: completed(nil),
		published:    make(map[string][]byte),
		handlers:     make(map[string]mqtt.MessageHandler),
		subscribes:   make(map[string]int),
	}
}

func (f *fakePaho) IsConnected() bool      { f.mu.Lock(); defer f.mu.Unlock(); return f.connected }
func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }
func (f *fakePaho) Connect() mqtt.Token {
	if f.connectToken.Error() == nil {
		f.mu.Lock()
		f.connected = true
		f.mu.Unlock()
		select {
		case <-f.connectToken.Done():
			f.opts.OnConnect(f)
		default:
		}
	}
	return f.connectToken
}
func (f *fakePaho) Disconnect(quiesce uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}
func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return completed(f.publishErr)
	}
	f.published[topic] = payload.([]byte)
	return completed(nil)
}
func (f *fakePaho) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	f.subscribes[topic]++
	return completed(nil)
}
func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return completed(nil)
}
func (f *fakePaho) Unsubscribe(topics ...string) mqtt.Token             { return completed(nil) }
func (f *fakePaho) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (f *fakePaho) OptionsReader() mqtt.ClientOptionsReader             { return mqtt.ClientOptionsReader{} }

func (f *fakePaho) deliver(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(f, fakeMessage{topic: topic, payload: payload})
}

func newTestClient(fake *fakePaho) *Client {
	c := New(config.MQTTConfig{Broker: "localhost:1883", ClientID: "test-relay"})
	c.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		fake.opts = opts
		return fake
	}
	return c
}

func TestConnect_ConfiguresOptions(t *testing.T) {
	fake := newFakePaho()
	c := newTestClient(fake)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	require.Len(t, fake.opts.Servers, 1)
	assert.Equal(t, "tcp://localhost:1883", fake.opts.Servers[0].String())
	assert.Equal(t, "test-relay", fake.opts.ClientID)
	assert.True(t, fake.opts.AutoReconnect)
	assert.False(t, fake.opts.ConnectRetry, "first connect must surface broker errors")
}

func TestConnect_Failures(t *testing.T) {
	t.Run("broker refuses", func(t *testing.T) {
		fake := newFakePaho()
		fake.connectToken = completed(errors.New("not authorized"))
		c := newTestClient(fake)

		err := c.Connect(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not authorized")
		assert.False(t, c.IsConnected())
	})

	t.Run("context cancelled", func(t *testing.T) {
		fake := newFakePaho()
		fake.connectToken = pending()
		c := newTestClient(fake)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, c.Connect(ctx), context.Canceled)
		assert.Equal(t, 1, fake.disconnects)
	})

	t.Run("timeout stops the attempt", func(t *testing.T) {
		fake := newFakePaho()
		fake.connectToken = pending()
		c := newTestClient(fake)
		c.connectTimeout = 10 * time.Millisecond

		err := c.Connect(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
		assert.Equal(t, 1, fake.disconnects)
		assert.False(t, c.IsConnected())
	})
}

func TestSubscribe_ReissuedOnReconnect(t *testing.T) {
	fake := newFakePaho()
	c := newTestClient(fake)

	// Registered before connecting: deferred to OnConnect
	var mu sync.Mutex
	var got []string
	require.NoError(t, c.Subscribe("c/notify", 1, func(topic string, payload []byte) {
		mu.Lock()
		got = append(got, topic+"="+string(payload))
		mu.Unlock()
	}))
	assert.Zero(t, fake.subscribes["c/notify"])

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 1, fake.subscribes["c/notify"])

	fake.deliver("c/notify", []byte("hello"))

	// Simulate paho reconnecting
	fake.opts.OnConnectionLost(fake, errors.New("eof"))
	assert.False(t, c.IsConnected())
	fake.opts.OnConnect(fake)
	assert.True(t, c.IsConnected())
	assert.Equal(t, 2, fake.subscribes["c/notify"])

	mu.Lock()
	assert.Equal(t, []string{"c/notify=hello"}, got)
	mu.Unlock()
	assert.Equal(t, uint64(1), c.Stats().Received)
}

func TestPublish(t *testing.T) {
	fake := newFakePaho()
	c := newTestClient(fake)

	assert.ErrorIs(t, c.Publish("c/Song", 0, []byte("x")), ErrNotConnected)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Publish("c/Song", 0, []byte("Bohemian Rhapsody")))
	assert.Equal(t, []byte("Bohemian Rhapsody"), fake.published["c/Song"])

	fake.publishErr = errors.New("broken pipe")
	assert.Error(t, c.Publish("c/Artist", 0, []byte("Queen")))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Published["c/Song"])
	assert.Equal(t, uint64(2), stats.Errors)

	c.Disconnect()
	assert.False(t, c.IsConnected())
}

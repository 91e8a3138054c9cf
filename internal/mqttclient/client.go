// Package mqttclient wraps a long-lived paho MQTT connection.
//
// Subscriptions are remembered and re-issued from the OnConnect handler, so
// they survive paho's automatic reconnects.
package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/care/homehub/internal/config"
)

const (
	connectTimeout   = 5 * time.Second
	publishTimeout   = 2 * time.Second
	subscribeTimeout = 5 * time.Second
)

// ErrNotConnected is returned when publishing without a broker connection
var ErrNotConnected = errors.New("mqtt not connected")

// MessageHandler receives messages for a subscribed topic
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client publishes and subscribes on one broker connection
type Client struct {
	cfg       config.MQTTConfig
	newClient      func(*mqtt.ClientOptions) mqtt.Client
	client         mqtt.Client
	connectTimeout time.Duration

	mu        sync.RWMutex
	connected bool
	subs      map[string]subscription
	published map[string]uint64
	received  uint64
	errors    uint64
}

// New creates a client. Call Connect before publishing.
func New(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:            cfg,
		newClient:      mqtt.NewClient,
		connectTimeout: connectTimeout,
		subs:           make(map[string]subscription),
		published:      make(map[string]uint64),
	}
}

// Connect establishes the broker connection. The first attempt is not
// retried so a refused broker is reported as such; once connected, paho
// reconnects automatically.
func (c *Client) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL())
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(c.connectTimeout)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// Resubscribing from OnConnect replaces session resumption
	opts.SetCleanSession(true)

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", c.cfg.Broker,
			"max_retry_interval", "30s",
		)
	}

	c.client = c.newClient(opts)

	slog.Info("connecting to mqtt broker", "broker", c.cfg.Broker, "client_id", c.cfg.ClientID)

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.client.Disconnect(0)
		return ctx.Err()
	case <-time.After(c.connectTimeout):
		c.client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout after %s", c.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return nil
}

// onConnect runs on the first connection and after every reconnect
func (c *Client) onConnect(client mqtt.Client) {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	slog.Info("mqtt connection established",
		"broker", c.cfg.Broker,
		"client_id", c.cfg.ClientID,
		"subscriptions", len(subs),
	)

	// paho runs OnConnect on its own goroutine; waiting here is allowed
	for topic, sub := range subs {
		if err := c.subscribe(client, topic, sub); err != nil {
			slog.Error("failed to resubscribe", "topic", topic, "error", err)
		}
	}
}

// Subscribe registers handler for topic. The subscription is issued now if
// connected and again after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	sub := subscription{qos: qos, handler: handler}

	c.mu.Lock()
	c.subs[topic] = sub
	client := c.client
	c.mu.Unlock()

	if client == nil || !c.IsConnected() {
		slog.Debug("mqtt subscription deferred until connected", "topic", topic)
		return nil
	}

	return c.subscribe(client, topic, sub)
}

func (c *Client) subscribe(client mqtt.Client, topic string, sub subscription) error {
	token := client.Subscribe(topic, sub.qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.mu.Lock()
		c.received++
		c.mu.Unlock()
		sub.handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscription to %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription to %s failed: %w", topic, err)
	}

	slog.Info("subscribed", "topic", topic, "qos", sub.qos)
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	if !c.IsConnected() {
		c.mu.Lock()
		c.errors++
		c.mu.Unlock()
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		c.mu.Lock()
		c.errors++
		c.mu.Unlock()
		return fmt.Errorf("publish to %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		c.mu.Lock()
		c.errors++
		c.mu.Unlock()
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	c.mu.Lock()
	c.published[topic]++
	c.mu.Unlock()

	slog.Debug("mqtt message published",
		"topic", topic,
		"qos", qos,
		"size", len(payload),
	)

	return nil
}

// Disconnect closes the connection
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// IsConnected reports whether the broker connection is up
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Stats contains client statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Received  uint64
	Errors    uint64
}

// Stats returns a snapshot of the client statistics
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	published := make(map[string]uint64, len(c.published))
	for k, v := range c.published {
		published[k] = v
	}

	return Stats{
		Connected: c.connected,
		Published: published,
		Received:  c.received,
		Errors:    c.errors,
	}
}

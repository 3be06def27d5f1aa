package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
)

// Client is the presence service's broker session.
//
// Subscriptions are remembered and replayed after every reconnect, since the
// session is clean and the broker forgets them. The service's liveness is
// kept retained on graylogic/system/status, with a will covering crashes.
//
// All methods are safe for concurrent use.
type Client struct {
	paho     pahomqtt.Client
	cfg      config.MQTTConfig
	identity statusIdentity
	logger   *logging.Logger

	onConnect    func()
	onDisconnect func(err error)

	subMu sync.RWMutex
	subs  map[string]subscription

	connected atomic.Bool
}

// subscription is replayed on reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one message. It runs on a paho goroutine and
// should return quickly; a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Option configures a Client before it connects.
type Option func(*Client)

// WithLogger sets the logger for connection and handler events.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l.With("component", "mqtt") }
}

// WithSite tags status messages with the site id.
func WithSite(siteID string) Option {
	return func(c *Client) { c.identity.site = siteID }
}

// OnConnect is called after every successful (re)connect, once
// subscriptions have been replayed.
func OnConnect(fn func()) Option {
	return func(c *Client) { c.onConnect = fn }
}

// OnDisconnect is called when the connection is lost.
func OnDisconnect(fn func(err error)) Option {
	return func(c *Client) { c.onDisconnect = fn }
}

// newClient builds an unconnected Client.
func newClient(cfg config.MQTTConfig, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		identity: statusIdentity{clientID: cfg.Broker.ClientID},
		logger:   logging.Discard(),
		subs:     make(map[string]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}

	po := pahoOptions(cfg)
	configureWill(po, c.identity)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	po.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logger.Warn("reconnecting to broker", "broker", cfg.Broker.Host)
	})
	c.paho = pahomqtt.NewClient(po)
	return c
}

// Connect dials the broker and waits for the first session.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := newClient(cfg, opts...)
	if err := await(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}
	// The connect handler runs asynchronously; report connected right away.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

// publishStatus writes the retained service status without waiting.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(c.identity, status, reason)
	return c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus(statusOffline, reasonGraceful).WaitTimeout(ackTimeout)
	}
	c.paho.Disconnect(disconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports whether the broker session is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.paho.IsConnected()
}

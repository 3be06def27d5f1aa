package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	errorDrainTimeout     = 2 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client records presence telemetry into one bucket. It satisfies
// presence.TelemetrySink.
//
// Writes are batched and never block the caller. A failed batch is logged
// and dropped; telemetry is not replayed.
type Client struct {
	client influxdb2.Client
	writer api.WriteAPI
	logger *logging.Logger

	// mu orders writes against Close; connected is read without it.
	mu        sync.RWMutex
	connected atomic.Bool
	drained   chan struct{}
}

type settings struct {
	logger *logging.Logger
	site   string
}

// Option configures Connect.
type Option func(*settings)

// WithLogger sets the logger for failed batches.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithSite tags every point with site=<id>.
func WithSite(siteID string) Option {
	return func(s *settings) { s.site = siteID }
}

// Connect pings the server and opens a batching writer on cfg.Bucket.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	s := settings{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&s)
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, s.site))

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client:  client,
		writer:  client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:  s.logger.With("component", "influxdb", "bucket", cfg.Bucket),
		drained: make(chan struct{}),
	}
	c.connected.Store(true)
	go c.logWriteErrors(c.writer.Errors())
	return c, nil
}

// clientOptions maps cfg onto the library's batching options. Non-positive
// batch settings fall back to the defaults.
func clientOptions(cfg config.InfluxDBConfig, site string) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
	if site != "" {
		opts.AddDefaultTag("site", site)
	}
	return opts
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// logWriteErrors runs until the writer closes its error channel.
func (c *Client) logWriteErrors(errs <-chan error) {
	defer close(c.drained)
	for err := range errs {
		c.logger.Warn("telemetry batch dropped", "error", err)
	}
}

// Close flushes queued points and releases the client. Safe to call twice
// and on a zero Client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.mu.Lock()
	wasConnected := c.connected.Swap(false)
	c.mu.Unlock()
	if !wasConnected {
		return nil
	}
	c.writer.Flush()
	c.client.Close()

	select {
	case <-c.drained:
	case <-time.After(errorDrainTimeout):
		c.logger.Warn("write error channel did not close")
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether points are being accepted. It does not ping.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

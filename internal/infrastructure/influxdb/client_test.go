package influxdb_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

// devConfig points at the InfluxDB from docker-compose.yml.
func devConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "graylogic-dev-token",
		Org:           "graylogic",
		Bucket:        "presence",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// lockedBuffer collects log output written from the error goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// connectDev connects to the dev server with a captured logger, or skips
// when it is not running and RUN_INTEGRATION is unset.
func connectDev(t *testing.T) (*influxdb.Client, *lockedBuffer) {
	t.Helper()
	logs := &lockedBuffer{}
	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(logs, nil))}

	client, err := influxdb.Connect(context.Background(), devConfig(),
		influxdb.WithLogger(logger), influxdb.WithSite("test-site"))
	if err != nil {
		if os.Getenv("RUN_INTEGRATION") == "" {
			t.Skipf("InfluxDB not available: %v", err)
		}
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // idempotent
	return client, logs
}

// closeAndCheckBatches flushes by closing and fails if a batch was rejected.
func closeAndCheckBatches(t *testing.T, client *influxdb.Client, logs *lockedBuffer) {
	t.Helper()
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if strings.Contains(logs.String(), "telemetry batch dropped") {
		t.Errorf("batch rejected: %s", logs.String())
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := devConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := devConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := influxdb.Connect(ctx, cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connectDev(t)

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := client.HealthCheck(cancelled); err == nil {
		t.Error("HealthCheck() with cancelled context = nil, want error")
	}
}

func TestRecordRangingAndTransitions(t *testing.T) {
	client, logs := connectDev(t)

	id, err := beacon.NewIdentity("f7826da6-4fa2-4e98-8024-bc5b71e0893e", 100, 5)
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	for i, prox := range []beacon.Proximity{beacon.ProximityFar, beacon.ProximityNear, beacon.ProximityImmediate} {
		client.RecordRanging(monitor.MonitoredBeacon{
			RoomID:         5,
			Identity:       id,
			Proximity:      prox,
			SignalStrength: -80 + 10*i,
			Accuracy:       3.0 - float64(i),
			UpdatedAt:      time.Now(),
		})
	}
	client.RecordTransition(transition.Transition{RoomID: 5, RegionID: "5", Entered: true})
	client.RecordTransition(transition.Transition{RoomID: 5, RegionID: "5", Entered: false})

	closeAndCheckBatches(t, client, logs)
}

func TestClose(t *testing.T) {
	client, logs := connectDev(t)
	client.RecordTransition(transition.Transition{RoomID: 99, RegionID: "99", Entered: true})

	closeAndCheckBatches(t, client, logs)

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close() = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	client.RecordTransition(transition.Transition{RoomID: 99, RegionID: "99", Entered: false})
}

func TestZeroClient(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	client.RecordTransition(transition.Transition{RoomID: 1, RegionID: "1"})
	client.RecordRanging(monitor.MonitoredBeacon{RoomID: 1})
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

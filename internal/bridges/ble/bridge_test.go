package ble

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

const kitchenUUID = "f7826da6-4fa2-4e98-8024-bc5b71e0893e"

// mockMQTTClient implements MQTTClient for testing.
type mockMQTTClient struct {
	mu         sync.Mutex
	published  []mockPublish
	handlers   map[string]mqtt.MessageHandler
	connected  bool
	publishErr error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *mockMQTTClient) PublishJSON(topic string, v any, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTTClient) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *mockMQTTClient) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// deliver simulates a scanner callback arriving on topic through the
// single-level wildcard subscription.
func (m *mockMQTTClient) deliver(topic string, payload string) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic[:strings.LastIndex(topic, "/")]+"/+"]
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscription")
	}
	return handler(topic, []byte(payload))
}

// delegateCall records one Delegate invocation.
type delegateCall struct {
	method     string
	kind       transition.RegionKind
	identifier string
	auth       permission.Authorization
	available  bool
	burst      []monitor.RangedBeacon
	cause      error
}

// fakeDelegate implements presence.Delegate.
type fakeDelegate struct {
	mu    sync.Mutex
	calls []delegateCall
	err   error
}

func (d *fakeDelegate) record(c delegateCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	return d.err
}

func (d *fakeDelegate) getCalls() []delegateCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delegateCall(nil), d.calls...)
}

func (d *fakeDelegate) AuthorizationChanged(_ context.Context, auth permission.Authorization) error {
	return d.record(delegateCall{method: "AuthorizationChanged", auth: auth})
}

func (d *fakeDelegate) MonitoringAvailabilityChanged(_ context.Context, available bool) error {
	return d.record(delegateCall{method: "MonitoringAvailabilityChanged", available: available})
}

func (d *fakeDelegate) RegionEntered(_ context.Context, kind transition.RegionKind, identifier string) error {
	return d.record(delegateCall{method: "RegionEntered", kind: kind, identifier: identifier})
}

func (d *fakeDelegate) RegionExited(_ context.Context, kind transition.RegionKind, identifier string) error {
	return d.record(delegateCall{method: "RegionExited", kind: kind, identifier: identifier})
}

func (d *fakeDelegate) BeaconsRanged(_ context.Context, burst []monitor.RangedBeacon) error {
	return d.record(delegateCall{method: "BeaconsRanged", burst: burst})
}

func (d *fakeDelegate) MonitoringFailed(_ context.Context, identifier string, cause error) error {
	return d.record(delegateCall{method: "MonitoringFailed", identifier: identifier, cause: cause})
}

func (d *fakeDelegate) ManagerFailed(_ context.Context, cause error) error {
	return d.record(delegateCall{method: "ManagerFailed", cause: cause})
}

func newTestBridge(t *testing.T) (*Bridge, *mockMQTTClient) {
	t.Helper()
	client := newMockMQTTClient()
	b, err := NewBridge(Options{MQTTClient: client, ScannerID: "hall-scanner"})
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	b.newID = func() string { return "cmd-1" }
	return b, client
}

func startedBridge(t *testing.T) (*Bridge, *mockMQTTClient, *fakeDelegate) {
	t.Helper()
	b, client := newTestBridge(t)
	d := &fakeDelegate{}
	require.NoError(t, b.Start(context.Background(), d))
	t.Cleanup(b.Stop)
	return b, client, d
}

func kitchenRegion(t *testing.T) beacon.Region {
	t.Helper()
	id, err := beacon.NewIdentity(kitchenUUID, 100, 5)
	require.NoError(t, err)
	return beacon.NewRegion(5, id)
}

func TestNewBridgeRequiresClient(t *testing.T) {
	_, err := NewBridge(Options{})
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name   string
		send   func(b *Bridge, ctx context.Context, r beacon.Region) error
		action Action
	}{
		{name: "start monitoring", send: (*Bridge).StartMonitoring, action: ActionStartMonitoring},
		{name: "stop monitoring", send: (*Bridge).StopMonitoring, action: ActionStopMonitoring},
		{name: "start ranging", send: (*Bridge).StartRanging, action: ActionStartRanging},
		{name: "stop ranging", send: (*Bridge).StopRanging, action: ActionStopRanging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestBridge(t)
			require.NoError(t, tt.send(b, context.Background(), kitchenRegion(t)))

			published := client.getPublished()
			require.Len(t, published, 1)
			assert.Equal(t, "graylogic/command/ble/5", published[0].Topic)
			assert.False(t, published[0].Retained)

			var cmd CommandMessage
			require.NoError(t, json.Unmarshal(published[0].Payload, &cmd))
			assert.Equal(t, tt.action, cmd.Action)
			assert.Equal(t, "cmd-1", cmd.ID)
			assert.Equal(t, "hall-scanner", cmd.ScannerID)
			assert.Equal(t, "5", cmd.RegionID)
			assert.Equal(t, strings.ToUpper(kitchenUUID), cmd.UUID)
			assert.Equal(t, uint16(100), cmd.Major)
			assert.Equal(t, uint16(5), cmd.Minor)
		})
	}
}

func TestCommandErrors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		b, client := newTestBridge(t)
		client.setConnected(false)
		err := b.StartMonitoring(context.Background(), kitchenRegion(t))
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Empty(t, client.getPublished())
	})

	t.Run("publish failure", func(t *testing.T) {
		b, client := newTestBridge(t)
		client.publishErr = errors.New("broker gone")
		err := b.StartRanging(context.Background(), kitchenRegion(t))
		assert.ErrorIs(t, err, ErrCommandFailed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		b, client := newTestBridge(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := b.StopMonitoring(ctx, kitchenRegion(t))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, client.getPublished())
	})
}

func TestStartSubscribesAndRequestsAuthorization(t *testing.T) {
	_, client, _ := startedBridge(t)

	client.mu.Lock()
	_, subscribed := client.handlers["graylogic/beacon/ble/+"]
	client.mu.Unlock()
	assert.True(t, subscribed)

	published := client.getPublished()
	require.Len(t, published, 1)
	assert.Equal(t, "graylogic/request/ble/authorization", published[0].Topic)

	var req RequestMessage
	require.NoError(t, json.Unmarshal(published[0].Payload, &req))
	assert.Equal(t, "authorized_always", req.Level)
}

func TestStartSurvivesAuthorizationRequestFailure(t *testing.T) {
	b, client := newTestBridge(t)
	client.setConnected(false)
	require.NoError(t, b.Start(context.Background(), &fakeDelegate{}))
}

func TestRegionCallbacks(t *testing.T) {
	_, client, d := startedBridge(t)

	require.NoError(t, client.deliver("graylogic/beacon/ble/region",
		`{"region_id":"5","region_type":"beacon","state":"enter"}`))
	require.NoError(t, client.deliver("graylogic/beacon/ble/region",
		`{"region_id":"5","region_type":"circular","state":"exit"}`))

	calls := d.getCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, delegateCall{method: "RegionEntered", kind: transition.KindBeacon, identifier: "5"}, calls[0])
	assert.Equal(t, delegateCall{method: "RegionExited", kind: transition.KindCircular, identifier: "5"}, calls[1])
}

func TestMalformedCallbacksDropped(t *testing.T) {
	_, client, d := startedBridge(t)

	payloads := map[string]string{
		"graylogic/beacon/ble/region":        `{"region_id":"5","state":"inside"}`,
		"graylogic/beacon/ble/ranging":       `not json`,
		"graylogic/beacon/ble/authorization": `{"status":"sometimes"}`,
		"graylogic/beacon/ble/error":         `{"region_id":"5"}`,
		"graylogic/beacon/ble/telemetry":     `{}`,
	}
	for topic, payload := range payloads {
		assert.NoError(t, client.deliver(topic, payload), topic)
	}
	assert.Empty(t, d.getCalls())
}

func TestRangingCallback(t *testing.T) {
	_, client, d := startedBridge(t)

	require.NoError(t, client.deliver("graylogic/beacon/ble/ranging", `{"beacons":[
		{"uuid":"`+kitchenUUID+`","major":100,"minor":5,"proximity":"near","rssi":-61,"accuracy":1.5},
		{"uuid":"nope","major":1,"minor":1,"proximity":"far","rssi":-90,"accuracy":9}
	]}`))

	calls := d.getCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].burst, 1)
	got := calls[0].burst[0]
	assert.Equal(t, kitchenRegion(t).Identity, got.Identity)
	assert.Equal(t, beacon.ProximityNear, got.Proximity)
	assert.Equal(t, -61, got.SignalStrength)
	assert.InDelta(t, 1.5, got.Accuracy, 1e-9)
}

func TestEmptyRangingNotForwarded(t *testing.T) {
	_, client, d := startedBridge(t)
	require.NoError(t, client.deliver("graylogic/beacon/ble/ranging", `{"beacons":[]}`))
	assert.Empty(t, d.getCalls())
}

func TestAuthorizationCallback(t *testing.T) {
	_, client, d := startedBridge(t)

	require.NoError(t, client.deliver("graylogic/beacon/ble/authorization",
		`{"status":"authorized_when_in_use","monitoring_available":false}`))
	require.NoError(t, client.deliver("graylogic/beacon/ble/authorization",
		`{"status":"denied"}`))

	calls := d.getCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, delegateCall{method: "MonitoringAvailabilityChanged", available: false}, calls[0])
	assert.Equal(t, delegateCall{method: "AuthorizationChanged", auth: permission.AuthorizedWhenInUse}, calls[1])
	assert.Equal(t, delegateCall{method: "AuthorizationChanged", auth: permission.Denied}, calls[2])
}

func TestErrorCallback(t *testing.T) {
	_, client, d := startedBridge(t)

	require.NoError(t, client.deliver("graylogic/beacon/ble/error",
		`{"region_id":"5","code":"REGION_MONITORING_FAILED","message":"too many regions"}`))
	require.NoError(t, client.deliver("graylogic/beacon/ble/error",
		`{"code":"ADAPTER_OFF"}`))

	calls := d.getCalls()
	require.Len(t, calls, 2)

	assert.Equal(t, "MonitoringFailed", calls[0].method)
	assert.Equal(t, "5", calls[0].identifier)
	assert.ErrorIs(t, calls[0].cause, ErrScannerFailure)
	assert.Contains(t, calls[0].cause.Error(), "too many regions")

	assert.Equal(t, "ManagerFailed", calls[1].method)
	assert.ErrorIs(t, calls[1].cause, ErrScannerFailure)
	assert.Contains(t, calls[1].cause.Error(), "ADAPTER_OFF")
}

func TestDelegateErrorReturned(t *testing.T) {
	_, client, d := startedBridge(t)
	d.err = errors.New("engine stopped")

	err := client.deliver("graylogic/beacon/ble/region", `{"region_id":"5","region_type":"beacon","state":"enter"}`)
	assert.EqualError(t, err, "engine stopped")
}

func TestStopUnsubscribesAndDropsInFlight(t *testing.T) {
	b, client, d := startedBridge(t)
	client.mu.Lock()
	handler := client.handlers["graylogic/beacon/ble/+"]
	client.mu.Unlock()
	require.NotNil(t, handler)

	b.Stop()
	b.Stop()

	client.mu.Lock()
	_, subscribed := client.handlers["graylogic/beacon/ble/+"]
	client.mu.Unlock()
	assert.False(t, subscribed, "scanner callbacks unsubscribed")

	// A callback already dispatched by the client is dropped.
	err := handler("graylogic/beacon/ble/region", []byte(`{"region_id":"5","region_type":"beacon","state":"enter"}`))
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Empty(t, d.getCalls())
}

func TestStartRequiresDelegate(t *testing.T) {
	b, _ := newTestBridge(t)
	assert.Error(t, b.Start(context.Background(), nil))
}

package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Bridge operation constants.
const (
	// commandQoS is used for commands and callbacks; both must arrive.
	commandQoS = 1

	// deliverTimeout bounds how long a callback waits for engine ingress.
	deliverTimeout = 2 * time.Second
)

// MQTTClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it; tests substitute a mock.
type MQTTClient interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTTClient is required.
	MQTTClient MQTTClient

	// ScannerID is stamped on every command. Optional.
	ScannerID string

	// Logger is optional; entries are discarded when nil.
	Logger *logging.Logger
}

// Bridge is the monitor.Platform backed by a BLE scanner over MQTT.
// Commands are fire-and-confirm: a nil error means the command was handed
// to the broker, not that the scanner acted on it.
type Bridge struct {
	mqtt      MQTTClient
	scannerID string
	logger    *logging.Logger
	now       func() time.Time
	newID     func() string

	delegate   presence.Delegate
	delegateMu sync.RWMutex

	// Bridge-level context, cancelled on Stop.
	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

var _ monitor.Platform = (*Bridge)(nil)

// NewBridge creates a bridge. Commands can be sent immediately; callbacks
// are delivered only after Start.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:      opts.MQTTClient,
		scannerID: opts.ScannerID,
		logger:    logger.With("component", "ble-bridge"),
		now:       time.Now,
		newID:     uuid.NewString,
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start subscribes to scanner callbacks and routes them to delegate, then
// asks the scanner to report its current authorization.
func (b *Bridge) Start(ctx context.Context, delegate presence.Delegate) error {
	if delegate == nil {
		return fmt.Errorf("delegate is required")
	}
	b.delegateMu.Lock()
	b.delegate = delegate
	b.delegateMu.Unlock()

	topic := mqtt.Topics{}.AllBridgeBeacons(Protocol)
	if err := b.mqtt.Subscribe(topic, commandQoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to scanner callbacks: %w", err)
	}
	b.logger.Info("subscribed to scanner callbacks", "topic", topic)

	if err := b.RequestAuthorization(ctx); err != nil {
		// The scanner also reports authorization on its own at startup.
		b.logger.Warn("authorization request failed", "error", err)
	}
	return nil
}

// Stop unsubscribes from scanner callbacks and detaches the delegate.
// Callbacks already in flight are dropped.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		topic := mqtt.Topics{}.AllBridgeBeacons(Protocol)
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			b.logger.Debug("unsubscribing from scanner callbacks", "topic", topic, "error", err)
		}
		b.ctxCancel()
		b.delegateMu.Lock()
		b.delegate = nil
		b.delegateMu.Unlock()
		b.logger.Info("bridge stopped")
	})
}

// StartMonitoring implements monitor.Platform.
func (b *Bridge) StartMonitoring(ctx context.Context, region beacon.Region) error {
	return b.sendCommand(ctx, ActionStartMonitoring, region)
}

// StopMonitoring implements monitor.Platform.
func (b *Bridge) StopMonitoring(ctx context.Context, region beacon.Region) error {
	return b.sendCommand(ctx, ActionStopMonitoring, region)
}

// StartRanging implements monitor.Platform.
func (b *Bridge) StartRanging(ctx context.Context, region beacon.Region) error {
	return b.sendCommand(ctx, ActionStartRanging, region)
}

// StopRanging implements monitor.Platform.
func (b *Bridge) StopRanging(ctx context.Context, region beacon.Region) error {
	return b.sendCommand(ctx, ActionStopRanging, region)
}

// RequestAuthorization asks the scanner for "always" authorization. The
// answer arrives later on the authorization callback topic.
func (b *Bridge) RequestAuthorization(ctx context.Context) error {
	msg := RequestMessage{
		RequestID: b.newID(),
		Timestamp: b.now().UTC(),
		ScannerID: b.scannerID,
		Level:     permission.AuthorizedAlways.String(),
	}
	return b.publish(ctx, mqtt.Topics{}.BridgeRequest(Protocol, "authorization"), msg)
}

func (b *Bridge) sendCommand(ctx context.Context, action Action, region beacon.Region) error {
	cmd := CommandMessage{
		ID:        b.newID(),
		Timestamp: b.now().UTC(),
		ScannerID: b.scannerID,
		Action:    action,
		RegionID:  region.Identifier,
		UUID:      strings.ToUpper(region.Identity.UUID.String()),
		Major:     region.Identity.Major,
		Minor:     region.Identity.Minor,
	}
	if err := b.publish(ctx, mqtt.Topics{}.BridgeCommand(Protocol, region.Identifier), cmd); err != nil {
		return fmt.Errorf("%s region %s: %w", action, region.Identifier, err)
	}
	b.logger.Debug("command sent",
		"command_id", cmd.ID,
		"action", string(action),
		"region_id", region.Identifier,
	)
	return nil
}

func (b *Bridge) publish(ctx context.Context, topic string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.mqtt.IsConnected() {
		return ErrNotConnected
	}
	if err := b.mqtt.PublishJSON(topic, v, false); err != nil {
		return fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}
	return nil
}

// handleMessage routes a scanner callback to the delegate. Malformed
// payloads are dropped with a debug entry and do not return an error.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	b.delegateMu.RLock()
	delegate := b.delegate
	b.delegateMu.RUnlock()
	if delegate == nil {
		return ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(b.ctx, deliverTimeout)
	defer cancel()

	topics := mqtt.Topics{}
	switch topic {
	case topics.BridgeBeacon(Protocol, KindRegion):
		return b.handleRegion(ctx, delegate, payload)
	case topics.BridgeBeacon(Protocol, KindRanging):
		return b.handleRanging(ctx, delegate, payload)
	case topics.BridgeBeacon(Protocol, KindAuthorization):
		return b.handleAuthorization(ctx, delegate, payload)
	case topics.BridgeBeacon(Protocol, KindError):
		return b.handleError(ctx, delegate, payload)
	default:
		b.logger.Debug("ignoring unknown callback", "topic", topic)
		return nil
	}
}

func (b *Bridge) handleRegion(ctx context.Context, d presence.Delegate, payload []byte) error {
	kind, identifier, entered, err := decodeRegion(payload)
	if err != nil {
		b.logger.Debug("discarding region callback", "error", err)
		return nil
	}
	if entered {
		return d.RegionEntered(ctx, kind, identifier)
	}
	return d.RegionExited(ctx, kind, identifier)
}

func (b *Bridge) handleRanging(ctx context.Context, d presence.Delegate, payload []byte) error {
	burst, skipped, err := decodeRanging(payload)
	if err != nil {
		b.logger.Debug("discarding ranging callback", "error", err)
		return nil
	}
	if skipped > 0 {
		b.logger.Debug("skipped ranged beacons with invalid uuid", "count", skipped)
	}
	if len(burst) == 0 {
		return nil
	}
	return d.BeaconsRanged(ctx, burst)
}

func (b *Bridge) handleAuthorization(ctx context.Context, d presence.Delegate, payload []byte) error {
	u, err := decodeAuthorization(payload)
	if err != nil {
		b.logger.Debug("discarding authorization callback", "error", err)
		return nil
	}
	if u.hasAvailable {
		if err := d.MonitoringAvailabilityChanged(ctx, u.available); err != nil {
			return err
		}
	}
	if u.hasAuth {
		return d.AuthorizationChanged(ctx, u.auth)
	}
	return nil
}

func (b *Bridge) handleError(ctx context.Context, d presence.Delegate, payload []byte) error {
	msg, err := decodeError(payload)
	if err != nil {
		b.logger.Debug("discarding error callback", "error", err)
		return nil
	}
	if msg.RegionID != "" {
		return d.MonitoringFailed(ctx, msg.RegionID, msg.Err())
	}
	return d.ManagerFailed(ctx, msg.Err())
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

// queueSize bounds alerts waiting to be posted.
const queueSize = 32

// Publisher sends an MQTT message. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Alert is the notification body shown by the UI.
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	RoomID    int       `json:"room_id"`
	Entered   bool      `json:"entered"`
}

// Notifier is a transition.Observer that posts one Alert per transition.
type Notifier struct {
	publisher Publisher
	topic     string
	logger    *logging.Logger
	now       func() time.Time

	queue   chan Alert
	dropped atomic.Uint64
}

var _ transition.Observer = (*Notifier)(nil)

// New creates a Notifier addressing alerts to the UI client clientID.
func New(publisher Publisher, clientID string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Notifier{
		publisher: publisher,
		topic:     mqtt.Topics{}.UINotification(clientID),
		logger:    logger.With("component", "notify"),
		now:       time.Now,
		queue:     make(chan Alert, queueSize),
	}
}

// Message returns the alert text for a transition.
func Message(t transition.Transition) string {
	if t.Entered {
		return fmt.Sprintf("Entered room %d", t.RoomID)
	}
	return fmt.Sprintf("Exited room %d", t.RoomID)
}

// OnTransition implements transition.Observer. It never blocks.
func (n *Notifier) OnTransition(t transition.Transition) {
	alert := Alert{
		ID:        uuid.NewString(),
		Timestamp: n.now().UTC(),
		Category:  "presence",
		Title:     "Presence",
		Body:      Message(t),
		RoomID:    t.RoomID,
		Entered:   t.Entered,
	}
	n.logger.Info(alert.Body, "room_id", t.RoomID, "entered", t.Entered)

	select {
	case n.queue <- alert:
	default:
		n.dropped.Add(1)
		n.logger.Warn("notification queue full, alert dropped", "room_id", t.RoomID)
	}
}

// OnSuppressed implements transition.Observer.
func (n *Notifier) OnSuppressed(transition.RegionEvent, transition.Outcome) {}

// Dropped returns how many alerts were discarded because the queue was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Run posts queued alerts until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case alert := <-n.queue:
			if err := n.post(alert); err != nil {
				n.logger.Warn("posting notification failed", "room_id", alert.RoomID, "error", err)
			}
		}
	}
}

func (n *Notifier) post(alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}
	return n.publisher.Publish(n.topic, payload, 1, false)
}

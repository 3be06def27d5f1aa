package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second

	// ackTimeout bounds waits for publish, subscribe and unsubscribe acks.
	ackTimeout = 5 * time.Second

	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 30 * time.Second
	maxQoS            = 2
)

// brokerURL is ssl:// when TLS is on, tcp:// otherwise.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// pahoOptions maps the mqtt config section onto a clean, auto-reconnecting
// session. Handlers run in arrival order so a scanner's region callbacks
// reach the engine in the order it sent them.
func pahoOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// Status payload values.
const (
	statusOnline   = "online"
	statusOffline  = "offline"
	reasonGraceful = "graceful_shutdown"
	reasonCrash    = "unexpected_disconnect"
)

// statusIdentity names this instance in status messages.
type statusIdentity struct {
	clientID string
	site     string
}

// statusPayload is published retained on graylogic/system/status. Consumers
// of occupancy topics use it to tell stale state from live state.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Site      string `json:"site,omitempty"`
	Service   string `json:"service"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// configureWill has the broker publish an offline status if the session
// drops without Close.
func configureWill(opts *pahomqtt.ClientOptions, id statusIdentity) {
	payload := buildStatusPayload(id, statusOffline, reasonCrash)
	opts.SetWill(Topics{}.SystemStatus(), string(payload), 1, true)
}

func buildStatusPayload(id statusIdentity, status, reason string) []byte {
	data, _ := json.Marshal(statusPayload{ //nolint:errcheck // Plain string fields always marshal
		Status:    status,
		ClientID:  id.clientID,
		Site:      id.site,
		Service:   "presence",
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

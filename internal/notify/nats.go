package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect dials a NATS server with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// NATSNotifier publishes notifications, busy edges and coordinator events as JSON.
//
// Subjects:
//
//	<prefix>.notifications
//	<prefix>.busy
//	<prefix>.events.<type>
type NATSNotifier struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSNotifier creates a notifier publishing under prefix.
func NewNATSNotifier(pub Publisher, prefix string, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{pub: pub, prefix: prefix, logger: logger}
}

// Notify publishes n on <prefix>.notifications.
func (n *NATSNotifier) Notify(_ context.Context, note Notification) {
	n.publish(n.prefix+".notifications", note)
}

// BusyChanged publishes the new busy state on <prefix>.busy.
func (n *NATSNotifier) BusyChanged(busy bool) {
	n.publish(n.prefix+".busy", struct {
		Busy bool      `json:"busy"`
		Time time.Time `json:"time"`
	}{busy, time.Now()})
}

// PublishEvent publishes v on <prefix>.events.<eventType>.
func (n *NATSNotifier) PublishEvent(eventType string, v any) {
	n.publish(n.prefix+".events."+eventType, v)
}

// publish never blocks on the network; *nats.Conn buffers while reconnecting.
// Failures are logged and dropped.
func (n *NATSNotifier) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		n.logger.Warn("encode nats message", "subject", subject, "error", err)
		return
	}
	if err := n.pub.Publish(subject, data); err != nil {
		n.logger.Warn("publish nats message", "subject", subject, "error", err)
	}
}

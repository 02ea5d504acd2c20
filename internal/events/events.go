// Package events publishes operational chat events over NATS so other
// deployments (dashboards, audit consumers) can observe presence changes
// and message throughput. Delivery to chat clients stays poll-based; this
// fan-out is fire-and-forget and the server never depends on it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/chat"
)

// NATS subjects used by the chat server.
const (
	SubjectJoined = "presence.joined"
	SubjectLeft   = "presence.left"
	SubjectPosted = "chat.posted"
)

// Publisher is the event sink consumed by the presence and message
// services.
type Publisher interface {
	ParticipantJoined(name string)
	ParticipantLeft(name string)
	MessagePosted(m chat.Message)
}

// Nop is a Publisher that discards everything. Used when NATS is not
// configured.
type Nop struct{}

func (Nop) ParticipantJoined(string) {}

func (Nop) ParticipantLeft(string) {}

func (Nop) MessagePosted(chat.Message) {}

// presenceEvent is the payload for join/leave subjects.
type presenceEvent struct {
	Name string `json:"name"`
	Ts   int64  `json:"ts"`
}

// postedEvent is the payload for the chat.posted subject. The body is
// omitted on purpose: consumers get throughput and routing, not content.
type postedEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "chat-api",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NATSPublisher implements Publisher on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
	log  *logrus.Entry
}

// NewNATSPublisher connects to NATS with the given config and returns a
// ready publisher. It returns an error if the initial connection fails.
func NewNATSPublisher(config Config, log *logrus.Entry) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			} else {
				log.Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}

	log.WithField("url", nc.ConnectedUrl()).Info("nats connected")
	return &NATSPublisher{conn: nc, log: log}, nil
}

func (p *NATSPublisher) ParticipantJoined(name string) {
	p.publish(SubjectJoined, presenceEvent{Name: name, Ts: time.Now().Unix()})
}

func (p *NATSPublisher) ParticipantLeft(name string) {
	p.publish(SubjectLeft, presenceEvent{Name: name, Ts: time.Now().Unix()})
}

func (p *NATSPublisher) MessagePosted(m chat.Message) {
	p.publish(SubjectPosted, postedEvent{From: m.From, To: m.To, Type: m.Type, Ts: time.Now().Unix()})
}

// publish marshals and sends one event. Failures are logged and dropped;
// event fan-out never fails a request.
func (p *NATSPublisher) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("event marshal failed")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("event publish failed")
	}
}

// Close flushes and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.WithError(err).Warn("nats drain failed")
	}
	p.conn.Close()
}

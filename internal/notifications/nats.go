package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Envelope is the JSON body published to NATS.
type Envelope struct {
	Event   Event     `json:"event"`
	Time    time.Time `json:"time"`
	Payload Payload   `json:"payload"`
}

// NATSPublisher publishes every event to <subject>.<event>.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// ConnectNATS dials url and returns a publisher rooted at subject.
func ConnectNATS(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("deodexer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, subject: strings.TrimSuffix(subject, ".")}, nil
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(event Event) string {
	return SubjectFor(p.subject, event)
}

// SubjectFor joins a base subject and an event name.
func SubjectFor(base string, event Event) string {
	if base == "" {
		return string(event)
	}
	return base + "." + string(event)
}

// Publish sends event as an Envelope. NATS publishing is asynchronous; the
// context only bounds the final flush for run-level events.
func (p *NATSPublisher) Publish(ctx context.Context, event Event, payload Payload) error {
	body, err := EncodeEnvelope(event, payload, time.Now())
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.Subject(event), body); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	if event == EventFileCompleted {
		return nil
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p != nil && p.nc != nil {
		_ = p.nc.Drain()
	}
}

// EncodeEnvelope marshals an event for the wire.
func EncodeEnvelope(event Event, payload Payload, at time.Time) ([]byte, error) {
	if payload == nil {
		payload = Payload{}
	}
	body, err := json.Marshal(Envelope{Event: event, Time: at.UTC(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return body, nil
}

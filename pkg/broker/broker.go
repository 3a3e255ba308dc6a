// Package broker is the publish/subscribe relay between the conversation
// service and connected sessions. It carries no durable state: an event
// reaches whoever is subscribed when it lands, and nobody else.
package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the wire envelope for everything crossing the bridge.
type Event struct {
	Channel   string          `json:"channel"`
	Name      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler receives one event. Handlers run on the bridge's dispatch
// goroutine; do not block in them.
type Handler func(Event)

// Subscription is a live binding to one channel.
type Subscription interface {
	// On registers a handler for one event name. Multiple handlers per
	// name are allowed.
	On(event string, h Handler)
	// Unsubscribe stops further handler invocation. Idempotent. An event
	// published concurrently with Unsubscribe may or may not be delivered.
	Unsubscribe()
}

// Broker fans published events out to all current subscribers of the
// named channel. Delivery is best-effort at-most-once; there is no
// queueing or replay for absent subscribers.
type Broker interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Subscribe(channel string) (Subscription, error)
	Close() error
}

// NewEvent builds an envelope, marshaling the payload.
func NewEvent(channel, event string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Channel:   channel,
		Name:      event,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

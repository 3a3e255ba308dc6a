// Package presence maintains the live set of connected users. Membership
// is rebuilt purely from currently-open sessions; nothing is persisted
// and a cold start means nobody is online.
package presence

import (
	"context"
	"log"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/model"
)

// Counter holds per-user session counts shared across gateway instances.
type Counter interface {
	// Incr adds one session for userID and returns the new count.
	Incr(ctx context.Context, userID string) (int64, error)
	// Decr removes one session for userID and returns the new count.
	Decr(ctx context.Context, userID string) (int64, error)
	// Members returns every user with at least one open session.
	Members(ctx context.Context) ([]string, error)
}

// Tracker turns session joins and leaves into membership edges: a user
// goes online on their first session and offline when the last one
// closes. Edges are announced on the presence channel through the broker.
type Tracker struct {
	counter Counter
	broker  broker.Broker
}

func NewTracker(counter Counter, b broker.Broker) *Tracker {
	return &Tracker{counter: counter, broker: b}
}

// Join records one more session for userID. The member_added event fires
// only on the offline -> online edge.
func (t *Tracker) Join(ctx context.Context, userID string) error {
	n, err := t.counter.Incr(ctx, userID)
	if err != nil {
		return err
	}
	if n == 1 {
		t.announce(ctx, model.EventMemberAdded, userID)
	}
	return nil
}

// Leave records one session ending for userID. The member_removed event
// fires only when the last session is gone.
func (t *Tracker) Leave(ctx context.Context, userID string) error {
	n, err := t.counter.Decr(ctx, userID)
	if err != nil {
		return err
	}
	if n <= 0 {
		t.announce(ctx, model.EventMemberRemoved, userID)
	}
	return nil
}

// Members returns the current online set, the payload of
// subscription_succeeded.
func (t *Tracker) Members(ctx context.Context) ([]string, error) {
	return t.counter.Members(ctx)
}

func (t *Tracker) announce(ctx context.Context, event, userID string) {
	err := t.broker.Publish(ctx, model.PresenceChannel, event, model.MemberPayload{UserID: userID})
	if err != nil {
		// Presence is best-effort; a missed edge heals on the next
		// subscription snapshot.
		log.Printf("presence: publish %s for %s failed: %v", event, userID, err)
	}
}

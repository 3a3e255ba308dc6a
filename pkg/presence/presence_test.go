package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/model"
)

// mapCounter is the in-process Counter used by tests.
type mapCounter struct {
	mu       sync.Mutex
	sessions map[string]int64
}

func newMapCounter() *mapCounter {
	return &mapCounter{sessions: make(map[string]int64)}
}

func (c *mapCounter) Incr(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[userID]++
	return c.sessions[userID], nil
}

func (c *mapCounter) Decr(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[userID]--
	n := c.sessions[userID]
	if n <= 0 {
		delete(c.sessions, userID)
	}
	return n, nil
}

func (c *mapCounter) Members(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		out = append(out, id)
	}
	return out, nil
}

type memberEvent struct {
	name   string
	userID string
}

func watchPresence(t *testing.T, b broker.Broker) *[]memberEvent {
	t.Helper()
	sub, err := b.Subscribe(model.PresenceChannel)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	events := &[]memberEvent{}
	record := func(name string) broker.Handler {
		return func(ev broker.Event) {
			var p model.MemberPayload
			json.Unmarshal(ev.Payload, &p)
			*events = append(*events, memberEvent{name: name, userID: p.UserID})
		}
	}
	sub.On(model.EventMemberAdded, record(model.EventMemberAdded))
	sub.On(model.EventMemberRemoved, record(model.EventMemberRemoved))
	return events
}

func TestMembersSnapshotSeesEveryoneOnline(t *testing.T) {
	b := broker.NewMemoryBroker()
	tracker := NewTracker(newMapCounter(), b)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2", "u3"} {
		if err := tracker.Join(ctx, id); err != nil {
			t.Fatalf("Join(%s): %v", id, err)
		}
	}

	members, err := tracker.Members(ctx)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	sort.Strings(members)
	want := []string{"u1", "u2", "u3"}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Fatalf("members = %v, want %v", members, want)
		}
	}
}

func TestMembershipEdgesFireOncePerUser(t *testing.T) {
	b := broker.NewMemoryBroker()
	events := watchPresence(t, b)
	tracker := NewTracker(newMapCounter(), b)
	ctx := context.Background()

	// Two sessions for the same user: one online edge.
	tracker.Join(ctx, "u1")
	tracker.Join(ctx, "u1")
	if len(*events) != 1 || (*events)[0] != (memberEvent{model.EventMemberAdded, "u1"}) {
		t.Fatalf("after two joins events = %v", *events)
	}

	// First session closing keeps the user online.
	tracker.Leave(ctx, "u1")
	if len(*events) != 1 {
		t.Fatalf("leave with a session remaining produced events: %v", *events)
	}

	// Last session closing takes them offline.
	tracker.Leave(ctx, "u1")
	if len(*events) != 2 || (*events)[1] != (memberEvent{model.EventMemberRemoved, "u1"}) {
		t.Fatalf("after final leave events = %v", *events)
	}

	members, _ := tracker.Members(ctx)
	if len(members) != 0 {
		t.Fatalf("members after full disconnect = %v, want empty", members)
	}
}

func TestDisconnectObservedByOtherSubscribers(t *testing.T) {
	b := broker.NewMemoryBroker()
	tracker := NewTracker(newMapCounter(), b)
	ctx := context.Background()

	tracker.Join(ctx, "u1")
	tracker.Join(ctx, "u2")

	// A subscriber arriving now sees u1 and u2 in the snapshot, then
	// observes u2 going away.
	events := watchPresence(t, b)
	members, _ := tracker.Members(ctx)
	if len(members) != 2 {
		t.Fatalf("snapshot = %v, want two members", members)
	}

	tracker.Leave(ctx, "u2")
	if len(*events) != 1 || (*events)[0] != (memberEvent{model.EventMemberRemoved, "u2"}) {
		t.Fatalf("events = %v, want single member_removed for u2", *events)
	}
}

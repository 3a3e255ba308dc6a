package broker

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	sub, err := b.Subscribe("conversation-42")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var got []Event
	sub.On("receive_message", func(ev Event) { got = append(got, ev) })

	payload := map[string]string{"content": "hello"}
	if err := b.Publish(context.Background(), "conversation-42", "receive_message", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	var decoded map[string]string
	if err := json.Unmarshal(got[0].Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["content"] != "hello" {
		t.Errorf("payload content = %q", decoded["content"])
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	b := NewMemoryBroker()
	sub, _ := b.Subscribe("conversation-1")

	var calls int
	sub.On("receive_message", func(Event) { calls++ })

	b.Publish(context.Background(), "conversation-2", "receive_message", nil)
	b.Publish(context.Background(), "conversation-1", "other_event", nil)

	if calls != 0 {
		t.Fatalf("handler invoked %d times for foreign channel/event", calls)
	}
}

func TestDeliveryOrderMatchesPublishOrder(t *testing.T) {
	b := NewMemoryBroker()
	sub, _ := b.Subscribe("conversation-7")

	var seen []int
	sub.On("receive_message", func(ev Event) {
		var n int
		json.Unmarshal(ev.Payload, &n)
		seen = append(seen, n)
	})

	for i := 0; i < 20; i++ {
		b.Publish(context.Background(), "conversation-7", "receive_message", i)
	}

	for i, n := range seen {
		if n != i {
			t.Fatalf("event %d arrived at position %d", n, i)
		}
	}
	if len(seen) != 20 {
		t.Fatalf("got %d events, want 20", len(seen))
	}
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	b := NewMemoryBroker()
	sub, _ := b.Subscribe("conversation-channel")

	var calls int
	sub.On("new-conversation", func(Event) { calls++ })

	b.Publish(context.Background(), "conversation-channel", "new-conversation", nil)
	sub.Unsubscribe()
	sub.Unsubscribe() // second call must be a no-op
	b.Publish(context.Background(), "conversation-channel", "new-conversation", nil)

	if calls != 1 {
		t.Fatalf("handler invoked %d times, want 1", calls)
	}
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	b := NewMemoryBroker()

	var a, c int
	subA, _ := b.Subscribe("conversation-channel")
	subA.On("deal-accepted", func(Event) { a++ })
	subC, _ := b.Subscribe("conversation-channel")
	subC.On("deal-accepted", func(Event) { c++ })

	b.Publish(context.Background(), "conversation-channel", "deal-accepted", nil)

	if a != 1 || c != 1 {
		t.Fatalf("fan-out counts = %d/%d, want 1/1", a, c)
	}
}

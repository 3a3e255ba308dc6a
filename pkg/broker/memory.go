package broker

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process bridge with the same contract as the
// Kafka one. It backs tests and single-process development runs. Delivery
// is synchronous in Publish, so per-channel ordering matches publish
// order trivially.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string][]*memorySub
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string][]*memorySub)}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel, event string, payload any) error {
	ev, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := make([]*memorySub, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(ev)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(channel string) (Subscription, error) {
	s := &memorySub{broker: b, channel: channel, handlers: make(map[string][]Handler)}
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], s)
	b.mu.Unlock()
	return s, nil
}

func (b *MemoryBroker) remove(s *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[s.channel]
	for i, cur := range subs {
		if cur == s {
			b.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[s.channel]) == 0 {
		delete(b.subs, s.channel)
	}
}

func (b *MemoryBroker) Close() error { return nil }

type memorySub struct {
	broker  *MemoryBroker
	channel string

	mu       sync.RWMutex
	closed   bool
	handlers map[string][]Handler
}

func (s *memorySub) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *memorySub) deliver(ev Event) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	handlers := s.handlers[ev.Name]
	s.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (s *memorySub) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.broker.remove(s)
}

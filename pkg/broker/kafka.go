package broker

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaBroker relays events through a single Kafka topic. Every broker
// instance joins with a unique consumer group so each one sees the whole
// stream and fans it out to its local subscriptions (broadcast, not
// work-sharing). The channel name is the message key, which pins one
// channel to one partition and preserves per-channel publish order.
type KafkaBroker struct {
	writer *kafka.Writer
	reader *kafka.Reader

	mu   sync.RWMutex
	subs map[string][]*kafkaSub

	closeOnce sync.Once
	done      chan struct{}
}

func NewKafkaBroker(brokers []string, topic string) *KafkaBroker {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: kafka.Murmur2Balancer{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "bridge-" + uuid.NewString(), // unique group: every instance gets every event
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	b := &KafkaBroker{
		writer: writer,
		reader: reader,
		subs:   make(map[string][]*kafkaSub),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *KafkaBroker) dispatch() {
	for {
		m, err := b.reader.ReadMessage(context.Background())
		if err != nil {
			select {
			case <-b.done:
			default:
				log.Printf("broker: consumer stopped: %v", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("broker: dropping malformed event: %v", err)
			continue
		}

		b.mu.RLock()
		subs := b.subs[ev.Channel]
		b.mu.RUnlock()
		for _, s := range subs {
			s.deliver(ev)
		}
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, channel, event string, payload any) error {
	ev, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: data,
		Time:  ev.Timestamp,
	})
}

func (b *KafkaBroker) Subscribe(channel string) (Subscription, error) {
	s := &kafkaSub{broker: b, channel: channel, handlers: make(map[string][]Handler)}
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], s)
	b.mu.Unlock()
	return s, nil
}

func (b *KafkaBroker) remove(s *kafkaSub) {
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

func (b *KafkaBroker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		if cerr := b.reader.Close(); cerr != nil {
			err = cerr
		}
		if cerr := b.writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

type kafkaSub struct {
	broker  *KafkaBroker
	channel string

	mu       sync.RWMutex
	closed   bool
	handlers map[string][]Handler
}

func (s *kafkaSub) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *kafkaSub) deliver(ev Event) {
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

func (s *kafkaSub) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.broker.remove(s)
}

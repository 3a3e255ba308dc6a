package main

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/presence"
)

// subRequest asks the hub to bind or unbind one client and one channel.
type subRequest struct {
	client  *Client
	channel string
}

// channelState is the hub's view of one channel: the local sockets bound
// to it and the single broker subscription feeding them.
type channelState struct {
	clients map[*Client]bool
	sub     broker.Subscription
}

// Hub fans broker events out to websocket clients. A channel is
// subscribed on the broker while at least one local client wants it and
// released when the last one leaves. All state is owned by the Run
// goroutine.
type Hub struct {
	brk      broker.Broker
	presence *presence.Tracker

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subRequest
	unsubscribe chan subRequest
	forward     chan broker.Event

	clients  map[*Client]map[string]bool
	channels map[string]*channelState
}

func NewHub(brk broker.Broker, tracker *presence.Tracker) *Hub {
	return &Hub{
		brk:         brk,
		presence:    tracker,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subRequest),
		unsubscribe: make(chan subRequest),
		forward:     make(chan broker.Event, 256),
		clients:     make(map[*Client]map[string]bool),
		channels:    make(map[string]*channelState),
	}
}

// channelEvents names the events carried on a channel; the hub binds
// broker handlers for exactly these.
func channelEvents(channel string) []string {
	switch {
	case channel == model.GlobalChannel:
		return []string{model.EventNewConversation, model.EventNewMessage, model.EventDealAccepted}
	case channel == model.PresenceChannel:
		return []string{model.EventMemberAdded, model.EventMemberRemoved}
	case strings.HasPrefix(channel, "conversation-"):
		return []string{model.EventReceiveMessage}
	}
	return nil
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = make(map[string]bool)
			log.Printf("Client registered: %s", client.ID)

		case client := <-h.unregister:
			if subs, ok := h.clients[client]; ok {
				for channel := range subs {
					h.drop(client, channel)
				}
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client unregistered: %s", client.ID)
			}

		case req := <-h.subscribe:
			h.add(req.client, req.channel)

		case req := <-h.unsubscribe:
			if subs, ok := h.clients[req.client]; ok && subs[req.channel] {
				h.drop(req.client, req.channel)
			}

		case ev := <-h.forward:
			h.deliver(ev)
		}
	}
}

func (h *Hub) add(client *Client, channel string) {
	subs, ok := h.clients[client]
	if !ok || subs[channel] {
		return
	}

	state := h.channels[channel]
	if state == nil {
		sub, err := h.brk.Subscribe(channel)
		if err != nil {
			log.Printf("Subscribe %s failed: %v", channel, err)
			return
		}
		for _, event := range channelEvents(channel) {
			sub.On(event, func(ev broker.Event) {
				// Runs on the broker dispatch goroutine; the buffered
				// forward channel hands off to the hub loop.
				select {
				case h.forward <- ev:
				default:
					log.Printf("Dropping event %s on %s: forward queue full", ev.Name, ev.Channel)
				}
			})
		}
		state = &channelState{clients: make(map[*Client]bool), sub: sub}
		h.channels[channel] = state
	}

	state.clients[client] = true
	subs[channel] = true

	if channel == model.PresenceChannel {
		h.welcome(client)
	}
}

// welcome delivers the membership snapshot to a fresh presence
// subscriber, then announces them. The join runs off the hub goroutine
// because its member_added publish loops straight back through forward.
func (h *Hub) welcome(client *Client) {
	members, err := h.presence.Members(context.Background())
	if err != nil {
		log.Printf("Presence snapshot for %s failed: %v", client.ID, err)
		members = nil
	}
	if ev, err := broker.NewEvent(model.PresenceChannel, model.EventSubscriptionSucceeded,
		model.MembershipPayload{Members: members}); err == nil {
		h.send(client, ev)
	}

	if !client.joinedPresence {
		client.joinedPresence = true
		go func() {
			if err := h.presence.Join(context.Background(), client.ID); err != nil {
				log.Printf("Presence join for %s failed: %v", client.ID, err)
			}
		}()
	}
}

func (h *Hub) drop(client *Client, channel string) {
	delete(h.clients[client], channel)

	state := h.channels[channel]
	if state != nil {
		delete(state.clients, client)
		if len(state.clients) == 0 {
			state.sub.Unsubscribe()
			delete(h.channels, channel)
		}
	}

	if channel == model.PresenceChannel && client.joinedPresence {
		client.joinedPresence = false
		userID := client.ID
		go func() {
			if err := h.presence.Leave(context.Background(), userID); err != nil {
				log.Printf("Presence leave for %s failed: %v", userID, err)
			}
		}()
	}
}

func (h *Hub) deliver(ev broker.Event) {
	state := h.channels[ev.Channel]
	if state == nil {
		return
	}
	for client := range state.clients {
		h.send(client, ev)
	}
}

func (h *Hub) send(client *Client, ev broker.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal event: %v", err)
		return
	}
	select {
	case client.send <- frame:
	default:
		// Slow consumer: shed it rather than blocking everyone.
		for channel := range h.clients[client] {
			h.drop(client, channel)
		}
		delete(h.clients, client)
		close(client.send)
	}
}

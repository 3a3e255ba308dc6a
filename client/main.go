package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/model"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// api is a thin authenticated client for the conversation service.
type api struct {
	base  string
	token string
}

func (a *api) do(method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, a.base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s %s: bad response: %w", method, path, err)
	}
	if !envelope.Success {
		return fmt.Errorf("%s %s: %s", method, path, envelope.Error)
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (a *api) login(userID, name, email string) error {
	var resp loginResponse
	err := a.do("POST", "/login", map[string]string{
		"user_id": userID,
		"name":    name,
		"email":   email,
	}, &resp)
	if err != nil {
		return err
	}
	a.token = resp.Token
	return nil
}

type sendState int

const (
	sendPending sendState = iota
	sendDelivered
	sendFailed
)

// session tracks which conversation is open and the fate of optimistic
// sends. Shared between the stdin and websocket goroutines.
type session struct {
	mu      sync.Mutex
	openID  string
	nextSeq int
	sends   map[int]sendState
}

func (s *session) open(conversationID string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.openID
	s.openID = conversationID
	return previous
}

func (s *session) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID
}

func (s *session) track() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.sends[s.nextSeq] = sendPending
	return s.nextSeq
}

func (s *session) resolve(seq int, state sendState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends[seq] = state
}

func (s *session) report() {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels := map[sendState]string{
		sendPending:   "sending",
		sendDelivered: "delivered",
		sendFailed:    "failed",
	}
	for seq := 1; seq <= s.nextSeq; seq++ {
		fmt.Printf("  #%d %s\n", seq, labels[s.sends[seq]])
	}
}

func subscribeCmd(c *websocket.Conn, action, channel string) error {
	frame, _ := json.Marshal(map[string]string{"action": action, "channel": channel})
	return c.WriteMessage(websocket.TextMessage, frame)
}

func printEvent(ev broker.Event, userID string, sess *session, refresh func()) {
	switch ev.Name {
	case model.EventSubscriptionSucceeded:
		var members model.MembershipPayload
		if err := json.Unmarshal(ev.Payload, &members); err == nil {
			fmt.Printf("\r* online now: %s\n> ", strings.Join(members.Members, ", "))
		}

	case model.EventMemberAdded, model.EventMemberRemoved:
		var member model.MemberPayload
		if err := json.Unmarshal(ev.Payload, &member); err != nil {
			return
		}
		verb := "is online"
		if ev.Name == model.EventMemberRemoved {
			verb = "went offline"
		}
		fmt.Printf("\r* %s %s\n> ", member.UserID, verb)

	case model.EventNewConversation:
		var conv model.Conversation
		if err := json.Unmarshal(ev.Payload, &conv); err != nil {
			return
		}
		if conv.HasParticipant(userID) {
			fmt.Printf("\r* new conversation %s (%s / %s)\n> ", conv.ID, conv.ProviderName, conv.SeekerName)
			refresh()
		}

	case model.EventNewMessage:
		var note model.NewMessagePayload
		if err := json.Unmarshal(ev.Payload, &note); err != nil {
			return
		}
		// The open conversation already streams its messages on its own
		// channel; only surface activity elsewhere.
		if note.ConversationID != sess.current() && note.Message.SenderID != userID {
			fmt.Printf("\r* activity in %s from %s\n> ", note.ConversationID, note.Message.SenderID)
		}

	case model.EventReceiveMessage:
		var msg model.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return
		}
		if msg.SenderID == userID {
			return // already echoed optimistically
		}
		fmt.Printf("\r%s: %s\n> ", msg.SenderID, msg.Content)

	case model.EventDealAccepted:
		var deal model.DealAcceptedPayload
		if err := json.Unmarshal(ev.Payload, &deal); err != nil {
			return
		}
		fmt.Printf("\r* %s accepted the deal with %s\n> ", deal.ProviderName, deal.SeekerName)
		refresh()

	default:
		fmt.Printf("\r* %s on %s\n> ", ev.Name, ev.Channel)
	}
}

func listConversations(a *api, userID string) {
	var conversations []model.Conversation
	if err := a.do("GET", "/conversations/by-user/"+url.PathEscape(userID), nil, &conversations); err != nil {
		log.Println("list conversations:", err)
		return
	}
	if len(conversations) == 0 {
		fmt.Println("no conversations yet")
		return
	}
	for _, conv := range conversations {
		last := ""
		if n := len(conv.Messages); n > 0 {
			last = conv.Messages[n-1].Content
		}
		fmt.Printf("  %s  %s / %s  %q\n", conv.ID, conv.ProviderName, conv.SeekerName, last)
	}
}

func listDeals(a *api, userID string) {
	var deals []model.Deal
	if err := a.do("GET", "/deals/by-user/"+url.PathEscape(userID), nil, &deals); err != nil {
		log.Println("list deals:", err)
		return
	}
	if len(deals) == 0 {
		fmt.Println("no deals yet")
		return
	}
	for _, deal := range deals {
		fmt.Printf("  %s  %s (%d sessions)  [%s]\n", deal.ID, deal.SkillOffered, deal.NumberOfSessions, deal.Status)
	}
}

func main() {
	gatewayAddr := flag.String("gateway", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.String("user", "user1", "user id")
	name := flag.String("name", "User One", "display name")
	email := flag.String("email", "user1@example.com", "email address")
	flag.Parse()

	// 1. Login to get token
	log.Printf("Logging in as %s...", *userID)
	a := &api{base: *apiAddr}
	if err := a.login(*userID, *name, *email); err != nil {
		log.Fatal("Login failed:", err)
	}
	log.Printf("Login successful. Token: %s...", a.token[:10])

	// 2. Connect to WebSocket with token
	u := url.URL{Scheme: "ws", Host: *gatewayAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+a.token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	// 3. Always listen for notifications and presence.
	if err := subscribeCmd(c, "subscribe", model.GlobalChannel); err != nil {
		log.Fatal("subscribe:", err)
	}
	if err := subscribeCmd(c, "subscribe", model.PresenceChannel); err != nil {
		log.Fatal("subscribe:", err)
	}

	sess := &session{sends: make(map[int]sendState)}
	done := make(chan struct{})

	// 4. Start goroutine to read events
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}

			var ev broker.Event
			if err := json.Unmarshal(message, &ev); err != nil {
				log.Printf("Received raw: %s", message)
				continue
			}
			printEvent(ev, *userID, sess, func() {
				listConversations(a, *userID)
				fmt.Print("> ")
			})
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	fmt.Println("commands: /convs, /deals, /sends, /open <conversation-id>, /quit; plain text sends to the open conversation")
	listConversations(a, *userID)

	// 5. Read from stdin: commands and optimistic sends
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				fmt.Print("> ")
				continue
			}

			switch {
			case text == "/quit":
				// Never close a signal-notified channel; a late SIGINT
				// would panic the signal package.
				interrupt <- os.Interrupt
				return

			case text == "/convs":
				listConversations(a, *userID)

			case text == "/deals":
				listDeals(a, *userID)

			case text == "/sends":
				sess.report()

			case strings.HasPrefix(text, "/open "):
				id := strings.TrimSpace(strings.TrimPrefix(text, "/open "))
				previous := sess.open(id)
				if previous != "" && previous != id {
					if err := subscribeCmd(c, "unsubscribe", model.ConversationChannel(previous)); err != nil {
						log.Println("write:", err)
						return
					}
				}
				if err := subscribeCmd(c, "subscribe", model.ConversationChannel(id)); err != nil {
					log.Println("write:", err)
					return
				}
				fmt.Printf("opened %s\n", id)

			default:
				conversationID := sess.current()
				if conversationID == "" {
					fmt.Println("open a conversation first: /open <conversation-id>")
					break
				}

				// Echo immediately; the server write catches up or the
				// message is marked failed.
				seq := sess.track()
				fmt.Printf("me #%d (sending): %s\n", seq, text)
				go func(seq int, content string) {
					body := map[string]string{
						"conversationId": conversationID,
						"senderId":       *userID,
						"content":        content,
					}
					if err := a.do("POST", "/messages", body, nil); err != nil {
						sess.resolve(seq, sendFailed)
						fmt.Printf("\r! #%d failed: %v\n> ", seq, err)
						return
					}
					sess.resolve(seq, sendDelivered)
					fmt.Printf("\r#%d delivered\n> ", seq)
				}(seq, text)
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

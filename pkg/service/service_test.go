package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/store"
)

type sentEmail struct {
	to      string
	subject string
	body    string
}

type recordingMailer struct {
	sent []sentEmail
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: htmlBody})
	return nil
}

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	broker *broker.MemoryBroker
	mailer *recordingMailer
}

func newFixture(t *testing.T, users ...model.User) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	br := broker.NewMemoryBroker()
	ml := &recordingMailer{}
	svc := New(st, br, ml, "http://localhost:8081")

	for _, u := range users {
		if err := svc.RegisterUser(context.Background(), u); err != nil {
			t.Fatalf("RegisterUser(%s): %v", u.ID, err)
		}
	}
	return &fixture{svc: svc, store: st, broker: br, mailer: ml}
}

var (
	alice = model.User{ID: "U1", Name: "Alice", Email: "alice@example.com"}
	bob   = model.User{ID: "U2", Name: "Bob", Email: "bob@example.com"}
)

func TestCreateConversationIgnoresCallerMessageIDs(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	// Both messages forge the same id; store-assigned ids must keep them
	// as two distinct rows.
	initial := []model.Message{
		{ID: 42, SenderID: "U1", Content: "first"},
		{ID: 42, SenderID: "U2", Content: "second"},
	}
	created, err := f.svc.CreateConversation(ctx, "U2", "U1", initial)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if len(created.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(created.Messages))
	}
	if created.Messages[0].ID == created.Messages[1].ID {
		t.Errorf("both messages share id %d", created.Messages[0].ID)
	}
	for _, m := range created.Messages {
		if m.ID == 42 {
			t.Errorf("caller-supplied id %d survived", m.ID)
		}
	}
}

func TestCreateConversationThenFind(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	created, err := f.svc.CreateConversation(ctx, "U2", "U1", nil)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	found, err := f.svc.FindConversation(ctx, "U2", "U1")
	if err != nil {
		t.Fatalf("FindConversation: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found %s, want %s", found.ID, created.ID)
	}
	if found.ProviderID != "U2" || found.SeekerID != "U1" {
		t.Errorf("roles = %s/%s, want U2/U1", found.ProviderID, found.SeekerID)
	}
	if len(found.Messages) != 0 {
		t.Errorf("fresh conversation has %d messages", len(found.Messages))
	}
}

func TestCreateConversationAnnouncesOnGlobalChannel(t *testing.T) {
	f := newFixture(t, alice, bob)

	var got []*model.Conversation
	sub, _ := f.broker.Subscribe(model.GlobalChannel)
	sub.On(model.EventNewConversation, func(ev broker.Event) {
		var c model.Conversation
		json.Unmarshal(ev.Payload, &c)
		got = append(got, &c)
	})

	created, err := f.svc.CreateConversation(context.Background(), "U2", "U1", []model.Message{
		{SenderID: "U1", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d new-conversation events, want 1", len(got))
	}
	if got[0].ID != created.ID || len(got[0].Messages) != 1 {
		t.Errorf("event payload = %+v", got[0])
	}
}

func TestCreateConversationMissingParticipant(t *testing.T) {
	f := newFixture(t, alice)

	_, err := f.svc.CreateConversation(context.Background(), "ghost", "U1", nil)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestCreateConversationDuplicatePair(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	if _, err := f.svc.CreateConversation(ctx, "U2", "U1", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.svc.CreateConversation(ctx, "U1", "U2", nil)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestSendMessageRejectsEmptyContentBeforeStore(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	c, err := f.svc.CreateConversation(ctx, "U2", "U1", nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := f.svc.SendMessage(ctx, c.ID, "U1", content)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("content %q: err = %v, want ValidationError", content, err)
		}
	}

	stored, _ := f.svc.FindConversation(ctx, "U2", "U1")
	if len(stored.Messages) != 0 {
		t.Fatalf("rejected sends reached the store: %d messages", len(stored.Messages))
	}
}

func TestSendMessageMissingConversation(t *testing.T) {
	f := newFixture(t, alice, bob)

	_, err := f.svc.SendMessage(context.Background(), "no-such-id", "U1", "hi")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestSendMessageRoundTripThroughBroker(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	c, err := f.svc.CreateConversation(ctx, "U2", "U1", nil)
	if err != nil {
		t.Fatal(err)
	}

	var scoped []model.Message
	sub, _ := f.broker.Subscribe(model.ConversationChannel(c.ID))
	sub.On(model.EventReceiveMessage, func(ev broker.Event) {
		var m model.Message
		json.Unmarshal(ev.Payload, &m)
		scoped = append(scoped, m)
	})

	var global []model.NewMessagePayload
	gsub, _ := f.broker.Subscribe(model.GlobalChannel)
	gsub.On(model.EventNewMessage, func(ev broker.Event) {
		var p model.NewMessagePayload
		json.Unmarshal(ev.Payload, &p)
		global = append(global, p)
	})

	sent, err := f.svc.SendMessage(ctx, c.ID, "U1", "hello there")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// The scoped event payload must equal the message just persisted.
	if len(scoped) != 1 {
		t.Fatalf("got %d receive_message events, want 1", len(scoped))
	}
	if scoped[0].ID != sent.ID || scoped[0].Content != "hello there" || scoped[0].SenderID != "U1" {
		t.Errorf("scoped payload = %+v, sent = %+v", scoped[0], sent)
	}

	if len(global) != 1 || global[0].ConversationID != c.ID {
		t.Fatalf("global new-message events = %+v", global)
	}

	stored, err := f.svc.FindConversation(ctx, "U2", "U1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Messages) != 1 || stored.Messages[0].ID != sent.ID {
		t.Errorf("stored messages = %+v", stored.Messages)
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	f := newFixture(t, alice, bob, model.User{ID: "U3", Name: "Mallory", Email: "m@example.com"})
	ctx := context.Background()

	c, _ := f.svc.CreateConversation(ctx, "U2", "U1", nil)
	_, err := f.svc.SendMessage(ctx, c.ID, "U3", "let me in")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func validDealRequest() ProposeDealRequest {
	return ProposeDealRequest{
		ProviderID:             "U2",
		SeekerID:               "U1",
		TimeFrame:              "1 week",
		SkillOffered:           "Guitar",
		NumberOfSessions:       3,
		SelectedAvailabilities: []string{"2024-01-05 10:00"},
		Message:                "Hi!",
		Status:                 model.DealPending,
	}
}

func TestProposeDealHappyPath(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	deal, err := f.svc.ProposeDeal(ctx, validDealRequest())
	if err != nil {
		t.Fatalf("ProposeDeal: %v", err)
	}
	if deal.Status != model.DealPending {
		t.Errorf("status = %s, want pending", deal.Status)
	}

	// Email goes to the provider and carries the parameterized accept link.
	if len(f.mailer.sent) != 1 {
		t.Fatalf("%d emails sent, want 1", len(f.mailer.sent))
	}
	mail := f.mailer.sent[0]
	if mail.to != "bob@example.com" {
		t.Errorf("email to %s, want bob@example.com", mail.to)
	}
	for _, fragment := range []string{"/accept-deal/U2", "seekerId=U1", "providerName=Bob", "seekerName=Alice"} {
		if !strings.Contains(mail.body, fragment) {
			t.Errorf("email body missing %q", fragment)
		}
	}

	// The pair's conversation exists and carries the proposal message.
	c, err := f.svc.FindConversation(ctx, "U2", "U1")
	if err != nil {
		t.Fatalf("FindConversation after propose: %v", err)
	}
	if len(c.Messages) != 1 || c.Messages[0].Content != "Hi!" || c.Messages[0].SenderID != "U1" {
		t.Errorf("proposal message = %+v", c.Messages)
	}
}

func TestProposeDealValidation(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	cases := map[string]func(*ProposeDealRequest){
		"missing provider":    func(r *ProposeDealRequest) { r.ProviderID = "" },
		"same participants":   func(r *ProposeDealRequest) { r.SeekerID = r.ProviderID },
		"empty time frame":    func(r *ProposeDealRequest) { r.TimeFrame = "  " },
		"empty skill":         func(r *ProposeDealRequest) { r.SkillOffered = "" },
		"zero sessions":       func(r *ProposeDealRequest) { r.NumberOfSessions = 0 },
		"negative sessions":   func(r *ProposeDealRequest) { r.NumberOfSessions = -2 },
		"no availabilities":   func(r *ProposeDealRequest) { r.SelectedAvailabilities = nil },
		"malformed slot":      func(r *ProposeDealRequest) { r.SelectedAvailabilities = []string{"friday-ish"} },
		"unknown status":      func(r *ProposeDealRequest) { r.Status = "maybe" },
	}

	for name, mutate := range cases {
		req := validDealRequest()
		mutate(&req)
		_, err := f.svc.ProposeDeal(ctx, req)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: err = %v, want ValidationError", name, err)
		}
	}
	if len(f.mailer.sent) != 0 {
		t.Errorf("invalid proposals sent %d emails", len(f.mailer.sent))
	}
}

func TestAcceptDealIsIdempotentOnConversation(t *testing.T) {
	f := newFixture(t, alice, bob)
	ctx := context.Background()

	if _, err := f.svc.ProposeDeal(ctx, validDealRequest()); err != nil {
		t.Fatal(err)
	}

	var accepted []model.DealAcceptedPayload
	sub, _ := f.broker.Subscribe(model.GlobalChannel)
	sub.On(model.EventDealAccepted, func(ev broker.Event) {
		var p model.DealAcceptedPayload
		json.Unmarshal(ev.Payload, &p)
		accepted = append(accepted, p)
	})

	params := AcceptDealParams{
		ProviderEmail: "bob@example.com",
		ProviderName:  "Bob",
		SeekerEmail:   "alice@example.com",
		SeekerName:    "Alice",
		SeekerID:      "U1",
	}

	// The email link clicked twice.
	first, err := f.svc.AcceptDeal(ctx, "U2", params)
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	second, err := f.svc.AcceptDeal(ctx, "U2", params)
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("accepts produced different conversations: %s vs %s", first.ID, second.ID)
	}

	list, _ := f.svc.ListConversations(ctx, "U1")
	if len(list) != 1 {
		t.Fatalf("%d conversations for the pair after double accept, want 1", len(list))
	}

	var sawAcceptance bool
	for _, m := range list[0].Messages {
		if strings.Contains(m.Content, "accepted the deal") {
			sawAcceptance = true
		}
	}
	if !sawAcceptance {
		t.Error("no acceptance message in the conversation")
	}

	deals, _ := f.svc.ListDeals(ctx, "U2")
	if len(deals) != 1 || deals[0].Status != model.DealAccepted {
		t.Errorf("deal after accept = %+v", deals)
	}

	if len(accepted) != 2 {
		t.Fatalf("%d deal-accepted events, want 2", len(accepted))
	}
	if accepted[0].ProviderName != "Bob" || accepted[0].SeekerEmail != "alice@example.com" {
		t.Errorf("deal-accepted payload = %+v", accepted[0])
	}
}

func TestAcceptDealMissingParameters(t *testing.T) {
	f := newFixture(t, alice, bob)

	_, err := f.svc.AcceptDeal(context.Background(), "U2", AcceptDealParams{SeekerID: "U1"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}


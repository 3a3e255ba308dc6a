// Package service orchestrates the conversation and deal operations:
// validate, persist through the store, then notify through the broker.
// The store write always precedes the publish, and a publish failure
// never rolls the write back: notification is best-effort, a client
// that missed one catches up on its next fetch.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/mailer"
	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/store"
)

// availabilityLayout is the accepted shape of an availability slot.
const availabilityLayout = "2006-01-02 15:04"

type Service struct {
	store   store.Store
	broker  broker.Broker
	mailer  mailer.Sender
	baseURL string
}

// New wires the service. baseURL is the externally reachable API base
// used to build accept-deal links.
func New(st store.Store, br broker.Broker, m mailer.Sender, baseURL string) *Service {
	return &Service{store: st, broker: br, mailer: m, baseURL: baseURL}
}

// RegisterUser upserts the user record backing participant display
// resolution. Called from the login path.
func (s *Service) RegisterUser(ctx context.Context, u model.User) error {
	if u.ID == "" {
		return validationf("user id is required")
	}
	return s.store.UpsertUser(ctx, u)
}

// CreateConversation validates both participants, persists the thread
// and announces it on the global channel.
func (s *Service) CreateConversation(ctx context.Context, providerID, seekerID string, initial []model.Message) (*model.Conversation, error) {
	if providerID == "" || seekerID == "" {
		return nil, validationf("provider and seeker ids are required")
	}
	if providerID == seekerID {
		return nil, validationf("provider and seeker must be different users")
	}
	if _, err := s.lookupUser(ctx, providerID, "provider"); err != nil {
		return nil, err
	}
	if _, err := s.lookupUser(ctx, seekerID, "seeker"); err != nil {
		return nil, err
	}

	now := time.Now()
	messages := make([]model.Message, 0, len(initial))
	for _, m := range initial {
		if strings.TrimSpace(m.Content) == "" {
			return nil, validationf("initial message content must not be empty")
		}
		if m.SenderID != providerID && m.SenderID != seekerID {
			return nil, validationf("initial message sender %s is not a participant", m.SenderID)
		}
		// Ids are store-assigned; a forged id would collide under the
		// per-conversation message key.
		m.ID = 0
		m.Timestamp = now
		messages = append(messages, m)
	}

	c := &model.Conversation{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		SeekerID:   seekerID,
		Messages:   messages,
	}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, &ConflictError{Msg: "conversation already exists for this pair"}
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{What: "participant"}
		}
		return nil, err
	}

	created, err := s.store.GetConversation(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, model.GlobalChannel, model.EventNewConversation, created)
	return created, nil
}

// FindConversation is the exact-pair lookup, tolerant of role order.
func (s *Service) FindConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, error) {
	if providerID == "" || seekerID == "" {
		return nil, validationf("provider and seeker ids are required")
	}
	c, err := s.store.FindConversation(ctx, providerID, seekerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{What: "conversation"}
	}
	return c, err
}

// ListConversations returns every conversation the user participates in,
// most recently updated first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	if userID == "" {
		return nil, validationf("user id is required")
	}
	return s.store.ListConversations(ctx, userID)
}

// SendMessage appends to an existing conversation and fans the message
// out: receive_message on the conversation's own channel, new-message on
// the global channel for list refreshes.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	if conversationID == "" || senderID == "" {
		return nil, validationf("conversation id and sender id are required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, validationf("message content must not be empty")
	}

	c, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{What: "conversation"}
	}
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(senderID) {
		return nil, validationf("sender %s is not a participant", senderID)
	}

	m := &model.Message{SenderID: senderID, Content: content}
	if err := s.store.AppendMessage(ctx, conversationID, m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{What: "conversation"}
		}
		return nil, err
	}

	s.publish(ctx, model.ConversationChannel(conversationID), model.EventReceiveMessage, m)
	s.publish(ctx, model.GlobalChannel, model.EventNewMessage, model.NewMessagePayload{
		ConversationID: conversationID,
		Message:        *m,
	})
	return m, nil
}

// ProposeDealRequest is the validated shape of POST /deals.
type ProposeDealRequest struct {
	ProviderID             string           `json:"providerId"`
	SeekerID               string           `json:"seekerId"`
	TimeFrame              string           `json:"timeFrame"`
	SkillOffered           string           `json:"skillOffered"`
	NumberOfSessions       int              `json:"numberOfSessions"`
	SelectedAvailabilities []string         `json:"selectedAvailabilities"`
	Message                string           `json:"message"`
	Status                 model.DealStatus `json:"status,omitempty"`
}

func (r *ProposeDealRequest) validate() error {
	switch {
	case r.ProviderID == "" || r.SeekerID == "":
		return validationf("provider and seeker ids are required")
	case r.ProviderID == r.SeekerID:
		return validationf("provider and seeker must be different users")
	case strings.TrimSpace(r.TimeFrame) == "":
		return validationf("time frame is required")
	case strings.TrimSpace(r.SkillOffered) == "":
		return validationf("skill offered is required")
	case r.NumberOfSessions <= 0:
		return validationf("number of sessions must be positive")
	case len(r.SelectedAvailabilities) == 0:
		return validationf("at least one availability slot is required")
	}
	for _, slot := range r.SelectedAvailabilities {
		if _, err := time.Parse(availabilityLayout, slot); err != nil {
			return validationf("malformed availability slot %q, want YYYY-MM-DD HH:MM", slot)
		}
	}
	if r.Status != "" && !r.Status.Valid() {
		return validationf("invalid status %q", r.Status)
	}
	return nil
}

// ProposeDeal persists the deal, ensures the pair's conversation carries
// the proposal message, and emails the provider an accept link. It does
// not publish on the broker; the provider hears about the proposal by
// mail, everyone else on the next fetch.
func (s *Service) ProposeDeal(ctx context.Context, req ProposeDealRequest) (*model.Deal, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	provider, err := s.lookupUser(ctx, req.ProviderID, "provider")
	if err != nil {
		return nil, err
	}
	seeker, err := s.lookupUser(ctx, req.SeekerID, "seeker")
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.DealPending
	}
	deal := &model.Deal{
		ID:                     uuid.NewString(),
		ProviderID:             req.ProviderID,
		SeekerID:               req.SeekerID,
		TimeFrame:              req.TimeFrame,
		SkillOffered:           req.SkillOffered,
		NumberOfSessions:       req.NumberOfSessions,
		SelectedAvailabilities: req.SelectedAvailabilities,
		Status:                 status,
		Message:                req.Message,
	}
	if err := s.store.CreateDeal(ctx, deal); err != nil {
		return nil, err
	}

	conversation, _, err := s.store.EnsureConversation(ctx, req.ProviderID, req.SeekerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) != "" {
		proposal := &model.Message{SenderID: req.SeekerID, Content: req.Message}
		if err := s.store.AppendMessage(ctx, conversation.ID, proposal); err != nil {
			return nil, err
		}
	}

	subject, body := mailer.DealProposalEmail(s.baseURL, provider, seeker, deal)
	if err := s.mailer.Send(ctx, provider.Email, subject, body); err != nil {
		// Deal is already persisted; the caller sees the failure and can
		// retry the proposal notification path.
		return nil, err
	}
	return deal, nil
}

// ListDeals returns every deal the user is part of, newest first.
func (s *Service) ListDeals(ctx context.Context, userID string) ([]*model.Deal, error) {
	if userID == "" {
		return nil, validationf("user id is required")
	}
	return s.store.ListDeals(ctx, userID)
}

// AcceptDealParams are the query parameters the accept link carries.
type AcceptDealParams struct {
	ProviderEmail string
	ProviderName  string
	SeekerEmail   string
	SeekerName    string
	SeekerID      string
}

// AcceptDeal handles the provider clicking the accept link. The pair's
// conversation is upserted (the idempotency anchor for a twice-clicked
// link), an acceptance message is appended, pending deals between the
// pair flip to accepted, and deal-accepted goes out on the global
// channel.
func (s *Service) AcceptDeal(ctx context.Context, providerID string, p AcceptDealParams) (*model.Conversation, error) {
	if providerID == "" || p.SeekerID == "" || p.ProviderEmail == "" || p.ProviderName == "" ||
		p.SeekerEmail == "" || p.SeekerName == "" {
		return nil, validationf("missing required parameters")
	}

	conversation, _, err := s.store.EnsureConversation(ctx, providerID, p.SeekerID)
	if err != nil {
		return nil, err
	}

	accepted := &model.Message{
		SenderID: p.SeekerID,
		Content:  p.ProviderName + " has accepted the deal.",
	}
	if err := s.store.AppendMessage(ctx, conversation.ID, accepted); err != nil {
		return nil, err
	}

	deals, err := s.store.ListDealsByPair(ctx, providerID, p.SeekerID)
	if err != nil {
		return nil, err
	}
	for _, d := range deals {
		if d.Status != model.DealPending {
			continue
		}
		if err := s.store.SetDealStatus(ctx, d.ID, model.DealAccepted); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, model.GlobalChannel, model.EventDealAccepted, model.DealAcceptedPayload{
		ProviderEmail: p.ProviderEmail,
		ProviderName:  p.ProviderName,
		SeekerEmail:   p.SeekerEmail,
		SeekerName:    p.SeekerName,
	})

	return s.store.GetConversation(ctx, conversation.ID)
}

func (s *Service) lookupUser(ctx context.Context, userID, role string) (model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, &NotFoundError{What: role}
	}
	return u, err
}

// publish is fire-and-forget: persistence already succeeded, so a broker
// failure is logged and swallowed, never surfaced to the caller.
func (s *Service) publish(ctx context.Context, channel, event string, payload any) {
	if err := s.broker.Publish(ctx, channel, event, payload); err != nil {
		log.Printf("service: publish %s on %s failed: %v", event, channel, err)
	}
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/realtime/pkg/model"
)

// MemoryStore implements Store over process memory. It backs tests and
// single-process development runs, with the same semantics as the Scylla
// implementation: pair uniqueness, lossless concurrent appends, display
// resolution on reads.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]model.User
	conversations map[string]*model.Conversation
	pairs         map[string]string // pair key -> conversation id
	deals         map[string]*model.Deal
	nextMessageID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]model.User),
		conversations: make(map[string]*model.Conversation),
		pairs:         make(map[string]string),
		deals:         make(map[string]*model.Deal),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) UpsertUser(ctx context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[c.ProviderID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.users[c.SeekerID]; !ok {
		return ErrNotFound
	}
	key := PairKey(c.ProviderID, c.SeekerID)
	if _, exists := s.pairs[key]; exists {
		return ErrConflict
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.ID == 0 {
			s.nextMessageID++
			m.ID = s.nextMessageID
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = c.CreatedAt
		}
	}

	s.pairs[key] = c.ID
	s.conversations[c.ID] = cloneConversation(c)
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(conversationID)
}

func (s *MemoryStore) getLocked(conversationID string) (*model.Conversation, error) {
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneConversation(c)
	s.resolveLocked(out)
	return out, nil
}

func (s *MemoryStore) resolveLocked(c *model.Conversation) {
	if provider, ok := s.users[c.ProviderID]; ok {
		c.ProviderName, c.ProviderEmail = provider.Name, provider.Email
	}
	if seeker, ok := s.users[c.SeekerID]; ok {
		c.SeekerName, c.SeekerEmail = seeker.Name, seeker.Email
	}
}

func (s *MemoryStore) FindConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pairs[PairKey(providerID, seekerID)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.getLocked(id)
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			copied := cloneConversation(c)
			s.resolveLocked(copied)
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID string, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if m.ID == 0 {
		s.nextMessageID++
		m.ID = s.nextMessageID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	c.Messages = append(c.Messages, *m)
	c.UpdatedAt = m.Timestamp
	return nil
}

func (s *MemoryStore) EnsureConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := PairKey(providerID, seekerID)
	if id, ok := s.pairs[key]; ok {
		c, err := s.getLocked(id)
		return c, false, err
	}

	now := time.Now()
	c := &model.Conversation{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		SeekerID:   seekerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.pairs[key] = c.ID
	s.conversations[c.ID] = c

	out := cloneConversation(c)
	s.resolveLocked(out)
	return out, true, nil
}

func (s *MemoryStore) CreateDeal(ctx context.Context, d *model.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = model.DealPending
	}
	s.deals[d.ID] = cloneDeal(d)
	return nil
}

func (s *MemoryStore) ListDeals(ctx context.Context, userID string) ([]*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Deal
	for _, d := range s.deals {
		if d.ProviderID == userID || d.SeekerID == userID {
			out = append(out, cloneDeal(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListDealsByPair(ctx context.Context, providerID, seekerID string) ([]*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := PairKey(providerID, seekerID)
	var out []*model.Deal
	for _, d := range s.deals {
		if PairKey(d.ProviderID, d.SeekerID) == key {
			out = append(out, cloneDeal(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetDealStatus(ctx context.Context, dealID string, status model.DealStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deals[dealID]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Messages = make([]model.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}

func cloneDeal(d *model.Deal) *model.Deal {
	out := *d
	out.SelectedAvailabilities = make([]string, len(d.SelectedAvailabilities))
	copy(out.SelectedAvailabilities, d.SelectedAvailabilities)
	return &out
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/skillswap/realtime/pkg/db"
	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/snowflake"
)

// ScyllaStore persists conversations and deals in ScyllaDB. Messages are
// one row each under the conversation partition, so an append is a single
// INSERT and concurrent sends cannot overwrite one another. The
// conversation_pairs table carries the unordered-pair natural key; its
// lightweight-transaction insert is the only coordination point.
type ScyllaStore struct {
	session *db.Session
	ids     *snowflake.Node
}

func NewScyllaStore(session *db.Session, ids *snowflake.Node) *ScyllaStore {
	return &ScyllaStore{session: session, ids: ids}
}

var _ Store = (*ScyllaStore)(nil)

func (s *ScyllaStore) UpsertUser(ctx context.Context, u model.User) error {
	return s.session.Query(`INSERT INTO users (user_id, name, email) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.Email).WithContext(ctx).Exec()
}

func (s *ScyllaStore) GetUser(ctx context.Context, userID string) (model.User, error) {
	u := model.User{ID: userID}
	err := s.session.Query(`SELECT name, email FROM users WHERE user_id = ?`, userID).
		WithContext(ctx).Scan(&u.Name, &u.Email)
	if errors.Is(err, gocql.ErrNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *ScyllaStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if _, err := s.GetUser(ctx, c.ProviderID); err != nil {
		return err
	}
	if _, err := s.GetUser(ctx, c.SeekerID); err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	applied, err := s.claimPair(ctx, c.ProviderID, c.SeekerID, c.ID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrConflict
	}

	if err := s.insertConversation(ctx, c); err != nil {
		s.releasePair(ctx, c.ProviderID, c.SeekerID, c.ID)
		return err
	}
	return nil
}

// claimPair inserts the pair-key row with a lightweight transaction and
// reports whether this call won the claim.
func (s *ScyllaStore) claimPair(ctx context.Context, providerID, seekerID, conversationID string) (bool, error) {
	var prevKey, prevID string
	applied, err := s.session.Query(
		`INSERT INTO conversation_pairs (pair_key, conversation_id) VALUES (?, ?) IF NOT EXISTS`,
		PairKey(providerID, seekerID), conversationID).
		WithContext(ctx).ScanCAS(&prevKey, &prevID)
	if err != nil {
		return false, err
	}
	return applied, nil
}

// releasePair drops a pair-key row after a failed conversation insert,
// so the pair can be claimed again instead of pointing forever at a
// conversation row that never landed. The delete is conditioned on the
// conversation id so it can never clobber a concurrent re-claim.
// Best-effort: if it fails too, FindConversation heals on next read.
func (s *ScyllaStore) releasePair(ctx context.Context, providerID, seekerID, conversationID string) {
	var prevKey, prevID string
	s.session.Query(`DELETE FROM conversation_pairs WHERE pair_key = ? IF conversation_id = ?`,
		PairKey(providerID, seekerID), conversationID).
		WithContext(ctx).ScanCAS(&prevKey, &prevID)
}

func (s *ScyllaStore) insertConversation(ctx context.Context, c *model.Conversation) error {
	err := s.session.Query(
		`INSERT INTO conversations (conversation_id, provider_id, seeker_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ProviderID, c.SeekerID, c.CreatedAt, c.UpdatedAt).WithContext(ctx).Exec()
	if err != nil {
		return err
	}

	for i := range c.Messages {
		m := &c.Messages[i]
		if m.ID == 0 {
			m.ID = s.ids.Generate()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = c.CreatedAt
		}
		err := s.session.Query(
			`INSERT INTO conversation_messages (conversation_id, message_id, sender_id, content, sent_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, m.ID, m.SenderID, m.Content, m.Timestamp).WithContext(ctx).Exec()
		if err != nil {
			return err
		}
	}

	return s.touchParticipants(ctx, c.ID, c.ProviderID, c.SeekerID, c.UpdatedAt)
}

// touchParticipants maintains the per-user listing read model.
func (s *ScyllaStore) touchParticipants(ctx context.Context, conversationID, providerID, seekerID string, at time.Time) error {
	for _, userID := range []string{providerID, seekerID} {
		err := s.session.Query(
			`INSERT INTO user_conversations (user_id, conversation_id, last_updated) VALUES (?, ?, ?)`,
			userID, conversationID, at).WithContext(ctx).Exec()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ScyllaStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	c := &model.Conversation{ID: conversationID}
	err := s.session.Query(
		`SELECT provider_id, seeker_id, created_at, updated_at FROM conversations WHERE conversation_id = ?`,
		conversationID).WithContext(ctx).Scan(&c.ProviderID, &c.SeekerID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	iter := s.session.Query(
		`SELECT message_id, sender_id, content, sent_at FROM conversation_messages WHERE conversation_id = ?`,
		conversationID).WithContext(ctx).Iter()
	var m model.Message
	for iter.Scan(&m.ID, &m.SenderID, &m.Content, &m.Timestamp) {
		c.Messages = append(c.Messages, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("load messages for %s: %w", conversationID, err)
	}

	s.resolveParticipants(ctx, c)
	return c, nil
}

// resolveParticipants fills display fields; a missing user record leaves
// them blank rather than failing the read.
func (s *ScyllaStore) resolveParticipants(ctx context.Context, c *model.Conversation) {
	if provider, err := s.GetUser(ctx, c.ProviderID); err == nil {
		c.ProviderName, c.ProviderEmail = provider.Name, provider.Email
	}
	if seeker, err := s.GetUser(ctx, c.SeekerID); err == nil {
		c.SeekerName, c.SeekerEmail = seeker.Name, seeker.Email
	}
}

func (s *ScyllaStore) FindConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, error) {
	var conversationID string
	err := s.session.Query(`SELECT conversation_id FROM conversation_pairs WHERE pair_key = ?`,
		PairKey(providerID, seekerID)).WithContext(ctx).Scan(&conversationID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c, err := s.GetConversation(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		// The pair row outlived a conversation insert that never landed.
		// Clear it so the pair can be claimed again.
		s.releasePair(ctx, providerID, seekerID, conversationID)
		return nil, ErrNotFound
	}
	return c, err
}

func (s *ScyllaStore) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	iter := s.session.Query(
		`SELECT conversation_id, last_updated FROM user_conversations WHERE user_id = ?`,
		userID).WithContext(ctx).Iter()

	type entry struct {
		id          string
		lastUpdated time.Time
	}
	var entries []entry
	var e entry
	for iter.Scan(&e.id, &e.lastUpdated) {
		entries = append(entries, e)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastUpdated.After(entries[j].lastUpdated)
	})

	conversations := make([]*model.Conversation, 0, len(entries))
	for _, e := range entries {
		c, err := s.GetConversation(ctx, e.id)
		if errors.Is(err, ErrNotFound) {
			continue // dangling read-model row
		}
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

func (s *ScyllaStore) AppendMessage(ctx context.Context, conversationID string, m *model.Message) error {
	var providerID, seekerID string
	err := s.session.Query(`SELECT provider_id, seeker_id FROM conversations WHERE conversation_id = ?`,
		conversationID).WithContext(ctx).Scan(&providerID, &seekerID)
	if errors.Is(err, gocql.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if m.ID == 0 {
		m.ID = s.ids.Generate()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	err = s.session.Query(
		`INSERT INTO conversation_messages (conversation_id, message_id, sender_id, content, sent_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, m.ID, m.SenderID, m.Content, m.Timestamp).WithContext(ctx).Exec()
	if err != nil {
		return err
	}

	err = s.session.Query(`UPDATE conversations SET updated_at = ? WHERE conversation_id = ?`,
		m.Timestamp, conversationID).WithContext(ctx).Exec()
	if err != nil {
		return err
	}
	return s.touchParticipants(ctx, conversationID, providerID, seekerID, m.Timestamp)
}

func (s *ScyllaStore) EnsureConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, bool, error) {
	for attempt := 0; ; attempt++ {
		c, err := s.FindConversation(ctx, providerID, seekerID)
		if err == nil {
			return c, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}

		now := time.Now()
		c = &model.Conversation{
			ID:         uuid.NewString(),
			ProviderID: providerID,
			SeekerID:   seekerID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		applied, err := s.claimPair(ctx, providerID, seekerID, c.ID)
		if err != nil {
			return nil, false, err
		}
		if !applied {
			// Lost the race: someone else just created it.
			existing, err := s.FindConversation(ctx, providerID, seekerID)
			if errors.Is(err, ErrNotFound) && attempt == 0 {
				// The winner's insert failed and Find cleared the pair
				// row. Take over with a fresh claim.
				continue
			}
			return existing, false, err
		}

		if err := s.insertConversation(ctx, c); err != nil {
			s.releasePair(ctx, providerID, seekerID, c.ID)
			return nil, false, err
		}
		s.resolveParticipants(ctx, c)
		return c, true, nil
	}
}

func (s *ScyllaStore) CreateDeal(ctx context.Context, d *model.Deal) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = model.DealPending
	}

	err := s.session.Query(
		`INSERT INTO deals (deal_id, provider_id, seeker_id, time_frame, skill_offered, number_of_sessions, availabilities, status, proposal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProviderID, d.SeekerID, d.TimeFrame, d.SkillOffered, d.NumberOfSessions,
		d.SelectedAvailabilities, string(d.Status), d.Message, d.CreatedAt).WithContext(ctx).Exec()
	if err != nil {
		return err
	}

	for _, userID := range []string{d.ProviderID, d.SeekerID} {
		err := s.session.Query(`INSERT INTO user_deals (user_id, deal_id) VALUES (?, ?)`,
			userID, d.ID).WithContext(ctx).Exec()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ScyllaStore) getDeal(ctx context.Context, dealID string) (*model.Deal, error) {
	d := &model.Deal{ID: dealID}
	var status string
	err := s.session.Query(
		`SELECT provider_id, seeker_id, time_frame, skill_offered, number_of_sessions, availabilities, status, proposal, created_at
		 FROM deals WHERE deal_id = ?`, dealID).WithContext(ctx).
		Scan(&d.ProviderID, &d.SeekerID, &d.TimeFrame, &d.SkillOffered, &d.NumberOfSessions,
			&d.SelectedAvailabilities, &status, &d.Message, &d.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = model.DealStatus(status)
	return d, nil
}

func (s *ScyllaStore) ListDeals(ctx context.Context, userID string) ([]*model.Deal, error) {
	iter := s.session.Query(`SELECT deal_id FROM user_deals WHERE user_id = ?`, userID).
		WithContext(ctx).Iter()
	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	deals := make([]*model.Deal, 0, len(ids))
	for _, id := range ids {
		d, err := s.getDeal(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	sort.Slice(deals, func(i, j int) bool { return deals[i].CreatedAt.After(deals[j].CreatedAt) })
	return deals, nil
}

func (s *ScyllaStore) ListDealsByPair(ctx context.Context, providerID, seekerID string) ([]*model.Deal, error) {
	all, err := s.ListDeals(ctx, providerID)
	if err != nil {
		return nil, err
	}
	key := PairKey(providerID, seekerID)
	var deals []*model.Deal
	for _, d := range all {
		if PairKey(d.ProviderID, d.SeekerID) == key {
			deals = append(deals, d)
		}
	}
	return deals, nil
}

func (s *ScyllaStore) SetDealStatus(ctx context.Context, dealID string, status model.DealStatus) error {
	if _, err := s.getDeal(ctx, dealID); err != nil {
		return err
	}
	return s.session.Query(`UPDATE deals SET status = ? WHERE deal_id = ?`,
		string(status), dealID).WithContext(ctx).Exec()
}

func (s *ScyllaStore) Close() error {
	s.session.Close()
	return nil
}

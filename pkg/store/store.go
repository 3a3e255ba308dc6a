// Package store is the single mutation authority for persisted
// conversation and deal state.
package store

import (
	"context"
	"errors"

	"github.com/skillswap/realtime/pkg/model"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a conversation already exists for the
	// unordered participant pair.
	ErrConflict = errors.New("store: conflict")
)

type Store interface {
	UpsertUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)

	// CreateConversation persists c with its initial messages. Fails with
	// ErrNotFound if either participant is unknown and ErrConflict if the
	// unordered pair already has a conversation.
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	// FindConversation looks up the conversation for the pair in either
	// role order.
	FindConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, error)
	// ListConversations returns every conversation userID participates
	// in, participants resolved for display, most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	// AppendMessage atomically appends m (assigning id and timestamp) and
	// bumps the conversation's last-modified time. Concurrent appends to
	// the same conversation must all land.
	AppendMessage(ctx context.Context, conversationID string, m *model.Message) error
	// EnsureConversation returns the pair's conversation, creating it
	// when absent. The second result reports whether it was created.
	// Safe to call concurrently and repeatedly for the same pair.
	EnsureConversation(ctx context.Context, providerID, seekerID string) (*model.Conversation, bool, error)

	CreateDeal(ctx context.Context, d *model.Deal) error
	ListDeals(ctx context.Context, userID string) ([]*model.Deal, error)
	ListDealsByPair(ctx context.Context, providerID, seekerID string) ([]*model.Deal, error)
	SetDealStatus(ctx context.Context, dealID string, status model.DealStatus) error

	Close() error
}

// PairKey is the order-insensitive natural key for a participant pair.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

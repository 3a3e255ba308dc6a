package model

import "time"

// User is the slice of the account record the messaging core needs:
// identity plus the display fields resolved into conversation listings.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message lives inside exactly one conversation. The ID is a snowflake
// assigned by the store at append time and doubles as the ordering key.
type Message struct {
	ID        int64     `json:"id,omitempty"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a durable thread between exactly two users. The
// provider/seeker roles are fixed at creation and never swap.
type Conversation struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"providerId"`
	SeekerID      string    `json:"seekerId"`
	ProviderName  string    `json:"providerName,omitempty"`
	ProviderEmail string    `json:"providerEmail,omitempty"`
	SeekerName    string    `json:"seekerName,omitempty"`
	SeekerEmail   string    `json:"seekerEmail,omitempty"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two fixed roles.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ProviderID == userID || c.SeekerID == userID
}

type DealStatus string

const (
	DealPending  DealStatus = "pending"
	DealAccepted DealStatus = "accepted"
	DealDeclined DealStatus = "declined"
)

// Valid reports whether s is one of the known deal states.
func (s DealStatus) Valid() bool {
	switch s {
	case DealPending, DealAccepted, DealDeclined:
		return true
	}
	return false
}

// Deal is a structured skill-exchange proposal from a seeker to a
// provider. Accepting it upserts the conversation for the pair.
type Deal struct {
	ID                     string     `json:"id"`
	ProviderID             string     `json:"providerId"`
	SeekerID               string     `json:"seekerId"`
	TimeFrame              string     `json:"timeFrame"`
	SkillOffered           string     `json:"skillOffered"`
	NumberOfSessions       int        `json:"numberOfSessions"`
	SelectedAvailabilities []string   `json:"selectedAvailabilities"`
	Status                 DealStatus `json:"status"`
	Message                string     `json:"message,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

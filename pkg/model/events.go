package model

// Channel names. Producers and consumers must agree on these strings, so
// they live here and nowhere else.
const (
	// GlobalChannel carries cross-cutting events every session listens to.
	GlobalChannel = "conversation-channel"
	// PresenceChannel is the membership channel; its subscriber set is the
	// online-users set.
	PresenceChannel = "presence-online-users"
)

// ConversationChannel returns the per-thread channel for message delivery
// scoped to one conversation.
func ConversationChannel(conversationID string) string {
	return "conversation-" + conversationID
}

// Event names per channel.
const (
	EventNewConversation = "new-conversation" // global: full conversation payload
	EventNewMessage      = "new-message"      // global: NewMessagePayload
	EventDealAccepted    = "deal-accepted"    // global: DealAcceptedPayload
	EventReceiveMessage  = "receive_message"  // conversation-<id>: Message

	EventSubscriptionSucceeded = "subscription_succeeded" // presence: MembershipPayload
	EventMemberAdded           = "member_added"           // presence: MemberPayload
	EventMemberRemoved         = "member_removed"         // presence: MemberPayload
)

// NewMessagePayload is the global-channel form of a delivered message,
// carrying enough context to refresh the right conversation.
type NewMessagePayload struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
}

// DealAcceptedPayload carries participant display info so listeners can
// render the notification without a fetch.
type DealAcceptedPayload struct {
	ProviderEmail string `json:"providerEmail"`
	ProviderName  string `json:"providerName"`
	SeekerEmail   string `json:"seekerEmail"`
	SeekerName    string `json:"seekerName"`
}

// MemberPayload identifies the user behind a presence membership change.
type MemberPayload struct {
	UserID string `json:"user_id"`
}

// MembershipPayload is the full membership snapshot delivered once on
// presence subscription.
type MembershipPayload struct {
	Members []string `json:"members"`
}

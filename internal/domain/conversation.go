package domain

import "time"

// Conversation is a two-party message thread.
type Conversation struct {
	ID                 string            `bson:"_id" json:"id"`
	Participants       []string          `bson:"participants" json:"participants"`
	PairKey            string            `bson:"pair_key" json:"-"`
	ParticipantNames   map[string]string `bson:"participant_names,omitempty" json:"participant_names,omitempty"`
	LastMessageID      string            `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessageAt      *time.Time        `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	LastMessagePreview string            `bson:"last_message_preview,omitempty" json:"last_message_preview,omitempty"`
	MessageSeq         int64             `bson:"message_seq" json:"-"`
	CreatedAt          time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `bson:"updated_at" json:"updated_at"`
}

// PairKey returns the order-independent identity of a two-party conversation.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationSummary is the listing view of a conversation for one user.
type ConversationSummary struct {
	Conversation *Conversation `json:"conversation"`
	OtherUser    *UserRef      `json:"other_user,omitempty"`
	UnreadCount  int64         `json:"unread_count"`
}

type UserRef struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

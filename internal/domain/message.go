package domain

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageImage
}

const (
	MaxMessageLength   = 1000
	DeletedPlaceholder = "This message was deleted"
)

type ReadReceipt struct {
	UserID string    `bson:"user_id" json:"user_id"`
	ReadAt time.Time `bson:"read_at" json:"read_at"`
}

type Message struct {
	ID             string        `bson:"_id" json:"id"`
	ConversationID string        `bson:"conversation_id" json:"conversation_id"`
	Seq            int64         `bson:"seq" json:"seq"`
	SenderID       string        `bson:"sender_id" json:"sender_id"`
	Content        string        `bson:"content" json:"content"`
	Type           MessageType   `bson:"message_type" json:"message_type"`
	Image          string        `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	IsDeleted      bool          `bson:"is_deleted" json:"is_deleted"`
	DeletedAt      *time.Time    `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	ReadBy         []ReadReceipt `bson:"read_by" json:"read_by"`
}

func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Preview is the short text stored on the conversation as its last message.
func (m *Message) Preview() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	if m.Type == MessageImage && m.Content == "" {
		return "[image]"
	}
	r := []rune(m.Content)
	if len(r) > 80 {
		return string(r[:80])
	}
	return m.Content
}

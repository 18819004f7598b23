package events

import "context"

const (
	MessageSent         = "message.sent"
	MessageRead         = "message.read"
	MessageDeleted      = "message.deleted"
	ConversationCreated = "conversation.created"
	NotificationCreated = "notification.created"
)

// Publisher emits domain events to a broker. Delivery is best-effort; callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event, key string, payload interface{}) error
	Close() error
}

// Envelope is the wire shape of every published event.
type Envelope struct {
	Event   string      `json:"event"`
	Key     string      `json:"key"`
	Payload interface{} `json:"payload"`
}

type Noop struct{}

func (Noop) Publish(context.Context, string, string, interface{}) error { return nil }
func (Noop) Close() error                                               { return nil }

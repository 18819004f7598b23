package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type ConversationRepository interface {
	// FindByPair returns the two-party conversation for a pair key.
	FindByPair(ctx context.Context, pairKey string) (*domain.Conversation, error)
	// Create returns ErrDuplicate when the pair already has a conversation.
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string, skip, limit int64) ([]*domain.Conversation, error)
	IDsForUser(ctx context.Context, userID string) ([]string, error)
	// NextSeq atomically increments and returns the conversation's message sequence.
	NextSeq(ctx context.Context, id string) (int64, error)
	SetLastMessage(ctx context.Context, id string, m *domain.Message) error
	SetParticipantNames(ctx context.Context, id string, names map[string]string) error
}

type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// AddReader appends a read receipt unless one exists for userID. It
	// reports whether a receipt was added.
	AddReader(ctx context.Context, id string, r domain.ReadReceipt) (bool, error)
	SoftDelete(ctx context.Context, id string, at time.Time) (*domain.Message, error)
	// ListVisible returns non-deleted messages newest first by sequence.
	ListVisible(ctx context.Context, conversationID string, skip, limit int64) ([]*domain.Message, error)
	// CountUnread counts non-deleted messages in the given conversations not
	// sent by userID and not read by userID.
	CountUnread(ctx context.Context, conversationIDs []string, userID string) (int64, error)
	CountAll(ctx context.Context, conversationID string) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ExistsSince(ctx context.Context, key domain.NotificationKey, since time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, recipientID string, skip, limit int64) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	SetRead(ctx context.Context, id string, read bool) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Upsert returns ErrDuplicate when the username belongs to another user.
	Upsert(ctx context.Context, u *domain.User) error
	UpdatePrefs(ctx context.Context, id string, prefs domain.NotificationPrefs) error
}

type PostRepository interface {
	Create(ctx context.Context, p *domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	// ToggleLike reports whether userID likes the post after the call.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, c *domain.Comment) error
}

type FollowRepository interface {
	// Toggle reports whether follower follows followee after the call.
	Toggle(ctx context.Context, followerID, followeeID string) (bool, error)
	Followers(ctx context.Context, userID string) ([]string, error)
}

// Store bundles every repository the services need.
type Store struct {
	Conversations ConversationRepository
	Messages      MessageRepository
	Notifications NotificationRepository
	Users         UserRepository
	Posts         PostRepository
	Follows       FollowRepository
}

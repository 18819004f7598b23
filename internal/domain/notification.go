package domain

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotifyLike    NotificationType = "like"
	NotifyComment NotificationType = "comment"
	NotifyFollow  NotificationType = "follow"
	NotifyPost    NotificationType = "post"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyLike, NotifyComment, NotifyFollow, NotifyPost:
		return true
	}
	return false
}

type Notification struct {
	ID          string           `bson:"_id" json:"id"`
	RecipientID string           `bson:"recipient_id" json:"recipient_id"`
	SenderID    string           `bson:"sender_id" json:"sender_id"`
	Type        NotificationType `bson:"type" json:"type"`
	PostID      string           `bson:"post_id" json:"post_id,omitempty"`
	CommentID   string           `bson:"comment_id" json:"comment_id,omitempty"`
	Message     string           `bson:"message" json:"message"`
	Read        bool             `bson:"read" json:"read"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
}

// NotificationKey is the tuple notifications are deduplicated on.
type NotificationKey struct {
	RecipientID string
	SenderID    string
	Type        NotificationType
	PostID      string
	CommentID   string
}

func (k NotificationKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", k.RecipientID, k.SenderID, k.Type, k.PostID, k.CommentID)
}

func (n *Notification) Key() NotificationKey {
	return NotificationKey{
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Type:        n.Type,
		PostID:      n.PostID,
		CommentID:   n.CommentID,
	}
}

type NotificationPrefs struct {
	Likes    bool `bson:"likes" json:"likes"`
	Comments bool `bson:"comments" json:"comments"`
	Follows  bool `bson:"follows" json:"follows"`
	Posts    bool `bson:"posts" json:"posts"`
}

func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{Likes: true, Comments: true, Follows: true, Posts: true}
}

func (p NotificationPrefs) Allows(t NotificationType) bool {
	switch t {
	case NotifyLike:
		return p.Likes
	case NotifyComment:
		return p.Comments
	case NotifyFollow:
		return p.Follows
	case NotifyPost:
		return p.Posts
	}
	return false
}

// NotificationText renders the fixed per-type template.
func NotificationText(t NotificationType, username, postTitle string) string {
	switch t {
	case NotifyLike:
		return fmt.Sprintf("%s liked your post \"%s\"", username, postTitle)
	case NotifyComment:
		return fmt.Sprintf("%s commented on your post \"%s\"", username, postTitle)
	case NotifyFollow:
		return fmt.Sprintf("%s started following you", username)
	case NotifyPost:
		return fmt.Sprintf("%s shared a new post \"%s\"", username, postTitle)
	}
	return ""
}

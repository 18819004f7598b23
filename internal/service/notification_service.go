package service

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"github.com/fathima-sithara/pixshare-service/internal/utils"
	"github.com/im7mortal/kmutex"
	"go.uber.org/zap"
)

const DefaultDedupWindow = 60 * time.Second

type NotificationService struct {
	notes  repository.NotificationRepository
	users  repository.UserRepository
	relay  Relay
	pub    events.Publisher
	locks  *kmutex.Kmutex
	window time.Duration
	paging Paging
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewNotificationService(st *repository.Store, relay Relay, pub events.Publisher, window time.Duration, paging Paging, log *zap.SugaredLogger) *NotificationService {
	if relay == nil {
		relay = noRelay{}
	}
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &NotificationService{
		notes:  st.Notifications,
		users:  st.Users,
		relay:  relay,
		pub:    pub,
		locks:  kmutex.New(),
		window: window,
		paging: paging,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type NotifyCommand struct {
	RecipientID string
	SenderID    string
	Type        domain.NotificationType
	PostID      string
	CommentID   string
	PostTitle   string
}

// Notify records a notification unless it is suppressed. The bool is false
// when nothing was created: the sender is the recipient, the recipient turned
// the type off, or the same notification was created within the window.
func (s *NotificationService) Notify(ctx context.Context, cmd NotifyCommand) (*domain.Notification, bool, error) {
	if !cmd.Type.Valid() {
		return nil, false, apperr.InvalidInput("type", "unknown notification type")
	}
	if cmd.RecipientID == "" || cmd.SenderID == "" {
		return nil, false, apperr.InvalidInput("recipient", "recipient and sender are required")
	}
	if cmd.SenderID == cmd.RecipientID {
		s.suppressed(cmd.Type, "self")
		return nil, false, nil
	}

	recipient, err := s.users.GetByID(ctx, cmd.RecipientID)
	if err != nil {
		return nil, false, storeErr(err, "user")
	}
	if !recipient.NotificationPrefs().Allows(cmd.Type) {
		s.suppressed(cmd.Type, "preference")
		return nil, false, nil
	}

	senderName := cmd.SenderID
	if sender, err := s.users.GetByID(ctx, cmd.SenderID); err == nil {
		senderName = sender.Username
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperr.Internal(err)
	}

	n := &domain.Notification{
		ID:          utils.NewID(),
		RecipientID: cmd.RecipientID,
		SenderID:    cmd.SenderID,
		Type:        cmd.Type,
		PostID:      cmd.PostID,
		CommentID:   cmd.CommentID,
		Message:     domain.NotificationText(cmd.Type, senderName, cmd.PostTitle),
	}
	key := n.Key()

	// the check and the insert must not interleave for the same tuple
	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	now := s.now()
	dup, err := s.notes.ExistsSince(ctx, key, now.Add(-s.window))
	if err != nil {
		return nil, false, apperr.Internal(err)
	}
	if dup {
		s.suppressed(cmd.Type, "duplicate")
		return nil, false, nil
	}

	n.CreatedAt = now
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, false, apperr.Internal(err)
	}
	metrics.Notifications.WithLabelValues(string(cmd.Type), "created").Inc()

	s.relay.PushTo(ctx, n.RecipientID, EventNewNotification, n)
	publish(ctx, s.pub, s.log, events.NotificationCreated, n.RecipientID, n)
	return n, true, nil
}

func (s *NotificationService) suppressed(t domain.NotificationType, reason string) {
	metrics.Notifications.WithLabelValues(string(t), reason).Inc()
}

// List returns the recipient's notifications newest first plus the unread total.
func (s *NotificationService) List(ctx context.Context, recipientID string, page, limit int) ([]*domain.Notification, int64, error) {
	skip, size := s.paging.Window(page, limit)
	items, err := s.notes.ListForRecipient(ctx, recipientID, skip, size)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	unread, err := s.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	n, err := s.notes.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (s *NotificationService) owned(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "notification")
	}
	if n.RecipientID != recipientID {
		return nil, apperr.Forbidden()
	}
	return n, nil
}

func (s *NotificationService) SetRead(ctx context.Context, id, recipientID string, read bool) (*domain.Notification, error) {
	n, err := s.owned(ctx, id, recipientID)
	if err != nil {
		return nil, err
	}
	if err := s.notes.SetRead(ctx, id, read); err != nil {
		return nil, storeErr(err, "notification")
	}
	n.Read = read
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	n, err := s.notes.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, id, recipientID string) error {
	if _, err := s.owned(ctx, id, recipientID); err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		return storeErr(err, "notification")
	}
	return nil
}

func (s *NotificationService) Preferences(ctx context.Context, userID string) (domain.NotificationPrefs, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.NotificationPrefs{}, storeErr(err, "user")
	}
	return u.NotificationPrefs(), nil
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, prefs domain.NotificationPrefs) (domain.NotificationPrefs, error) {
	if err := s.users.UpdatePrefs(ctx, userID, prefs); err != nil {
		return domain.NotificationPrefs{}, storeErr(err, "user")
	}
	return prefs, nil
}

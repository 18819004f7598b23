package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"github.com/fathima-sithara/pixshare-service/internal/utils"
	"go.uber.org/zap"
)

type MessageService struct {
	convs    repository.ConversationRepository
	msgs     repository.MessageRepository
	users    repository.UserRepository
	resolver *ConversationService
	relay    Relay
	pub      events.Publisher
	paging   Paging
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewMessageService(st *repository.Store, resolver *ConversationService, relay Relay, pub events.Publisher, paging Paging, log *zap.SugaredLogger) *MessageService {
	if relay == nil {
		relay = noRelay{}
	}
	return &MessageService{
		convs:    st.Conversations,
		msgs:     st.Messages,
		users:    st.Users,
		resolver: resolver,
		relay:    relay,
		pub:      pub,
		paging:   paging,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SendMessageCommand struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           domain.MessageType
	Image          string
}

type DirectMessageCommand struct {
	SenderID    string
	RecipientID string
	Content     string
	Type        domain.MessageType
	Image       string
}

// checkContent normalises and validates message content and type.
func checkContent(content string, typ domain.MessageType, image string) (string, domain.MessageType, error) {
	if typ == "" {
		typ = domain.MessageText
	}
	if !typ.Valid() {
		return "", "", apperr.InvalidInput("messageType", "messageType must be text or image")
	}
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n > domain.MaxMessageLength {
		return "", "", apperr.InvalidInput("content", "content must be at most 1000 characters")
	}
	switch typ {
	case domain.MessageText:
		if n == 0 {
			return "", "", apperr.InvalidInput("content", "content is required")
		}
	case domain.MessageImage:
		if strings.TrimSpace(image) == "" {
			return "", "", apperr.InvalidInput("image", "image is required for image messages")
		}
	}
	return content, typ, nil
}

// Send appends a message to a conversation the sender belongs to.
func (s *MessageService) Send(ctx context.Context, cmd SendMessageCommand) (*domain.Message, error) {
	content, typ, err := checkContent(cmd.Content, cmd.Type, cmd.Image)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if !conv.HasParticipant(cmd.SenderID) {
		return nil, apperr.Forbidden()
	}
	return s.append(ctx, conv, cmd.SenderID, content, typ, strings.TrimSpace(cmd.Image))
}

func (s *MessageService) append(ctx context.Context, conv *domain.Conversation, senderID, content string, typ domain.MessageType, image string) (*domain.Message, error) {
	seq, err := s.convs.NextSeq(ctx, conv.ID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	m := &domain.Message{
		ID:             utils.NewID(),
		ConversationID: conv.ID,
		Seq:            seq,
		SenderID:       senderID,
		Content:        content,
		Type:           typ,
		CreatedAt:      s.now(),
		ReadBy:         []domain.ReadReceipt{},
	}
	if typ == domain.MessageImage {
		m.Image = image
	}
	if err := s.msgs.Insert(ctx, m); err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.convs.SetLastMessage(ctx, conv.ID, m); err != nil {
		// the pointer is derived state; the message itself is stored
		s.log.Warnw("last message pointer not updated", "conversation_id", conv.ID, "message_id", m.ID, "error", err)
	}
	metrics.MessagesSent.WithLabelValues(string(typ)).Inc()
	return m, nil
}

// SendTo sends a direct message, creating the conversation on first contact,
// and relays it to every participant that is online.
func (s *MessageService) SendTo(ctx context.Context, cmd DirectMessageCommand) (*domain.Message, error) {
	if cmd.RecipientID == "" {
		return nil, apperr.InvalidInput("recipientId", "recipientId is required")
	}
	if cmd.SenderID == cmd.RecipientID {
		return nil, apperr.InvalidOperation("cannot message yourself")
	}
	content, typ, err := checkContent(cmd.Content, cmd.Type, cmd.Image)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, cmd.RecipientID); err != nil {
		return nil, storeErr(err, "user")
	}
	conv, err := s.resolver.FindOrCreate(ctx, cmd.SenderID, cmd.RecipientID)
	if err != nil {
		return nil, err
	}
	m, err := s.append(ctx, conv, cmd.SenderID, content, typ, strings.TrimSpace(cmd.Image))
	if err != nil {
		return nil, err
	}

	for _, uid := range conv.Participants {
		s.relay.PushTo(ctx, uid, EventNewMessage, m)
	}
	publish(ctx, s.pub, s.log, events.MessageSent, conv.ID, m)
	return m, nil
}

// MarkRead records that readerID has read the message. Marking twice is a
// no-op; marking one's own message is forbidden.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID string) (*domain.Message, error) {
	m, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, storeErr(err, "message")
	}
	if m.SenderID == readerID {
		return nil, apperr.Forbidden()
	}
	conv, err := s.convs.GetByID(ctx, m.ConversationID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if !conv.HasParticipant(readerID) {
		return nil, apperr.Forbidden()
	}
	if m.IsReadBy(readerID) {
		return m, nil
	}

	rr := domain.ReadReceipt{UserID: readerID, ReadAt: s.now()}
	added, err := s.msgs.AddReader(ctx, messageID, rr)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if added {
		m.ReadBy = append(m.ReadBy, rr)
		publish(ctx, s.pub, s.log, events.MessageRead, m.ConversationID, map[string]string{
			"message_id": m.ID,
			"reader_id":  readerID,
		})
		return m, nil
	}
	// lost a race with a concurrent read; return the stored state
	if m, err = s.msgs.GetByID(ctx, messageID); err != nil {
		return nil, storeErr(err, "message")
	}
	return m, nil
}

// SoftDelete replaces the message content with a placeholder and flags it.
// Only the sender may delete; the row is kept.
func (s *MessageService) SoftDelete(ctx context.Context, messageID, requesterID string) (*domain.Message, error) {
	m, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, storeErr(err, "message")
	}
	if m.SenderID != requesterID {
		return nil, apperr.Forbidden()
	}
	if m.IsDeleted {
		return m, nil
	}
	m, err = s.msgs.SoftDelete(ctx, messageID, s.now())
	if err != nil {
		return nil, storeErr(err, "message")
	}

	conv, err := s.convs.GetByID(ctx, m.ConversationID)
	if err == nil && conv.LastMessageID == m.ID {
		if err := s.convs.SetLastMessage(ctx, conv.ID, m); err != nil {
			s.log.Warnw("last message preview not updated", "conversation_id", conv.ID, "error", err)
		}
	}
	publish(ctx, s.pub, s.log, events.MessageDeleted, m.ConversationID, map[string]string{"message_id": m.ID})
	return m, nil
}

// List returns one page of a conversation's visible messages, oldest first.
// Every returned message the requester has not read and did not send is
// marked read before returning.
func (s *MessageService) List(ctx context.Context, conversationID, requesterID string, page, limit int) ([]*domain.Message, error) {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if !conv.HasParticipant(requesterID) {
		return nil, apperr.Forbidden()
	}

	skip, size := s.paging.Window(page, limit)
	msgs, err := s.msgs.ListVisible(ctx, conversationID, skip, size)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	for _, m := range msgs {
		if m.SenderID == requesterID || m.IsReadBy(requesterID) {
			continue
		}
		rr := domain.ReadReceipt{UserID: requesterID, ReadAt: now}
		if _, err := s.msgs.AddReader(ctx, m.ID, rr); err != nil {
			return nil, apperr.Internal(err)
		}
		m.ReadBy = append(m.ReadBy, rr)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Count returns the number of messages in a conversation, deleted included.
func (s *MessageService) Count(ctx context.Context, conversationID string) (int64, error) {
	n, err := s.msgs.CountAll(ctx, conversationID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

package service

import (
	"context"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
)

// UnreadService derives unread counts from message read state. Nothing is
// cached; every call is a query.
type UnreadService struct {
	convs repository.ConversationRepository
	msgs  repository.MessageRepository
}

func NewUnreadService(st *repository.Store) *UnreadService {
	return &UnreadService{convs: st.Conversations, msgs: st.Messages}
}

// ForConversation counts messages in the conversation not sent by userID and
// not yet read by them. Soft-deleted messages never count.
func (s *UnreadService) ForConversation(ctx context.Context, conversationID, userID string) (int64, error) {
	n, err := s.msgs.CountUnread(ctx, []string{conversationID}, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// Total is ForConversation summed over every conversation userID is in.
func (s *UnreadService) Total(ctx context.Context, userID string) (int64, error) {
	ids, err := s.convs.IDsForUser(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	n, err := s.msgs.CountUnread(ctx, ids, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

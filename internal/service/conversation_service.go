package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"github.com/fathima-sithara/pixshare-service/internal/utils"
	"github.com/im7mortal/kmutex"
	"go.uber.org/zap"
)

type ConversationService struct {
	convs  repository.ConversationRepository
	users  repository.UserRepository
	unread *UnreadService
	pub    events.Publisher
	locks  *kmutex.Kmutex
	paging Paging
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewConversationService(st *repository.Store, unread *UnreadService, pub events.Publisher, paging Paging, log *zap.SugaredLogger) *ConversationService {
	return &ConversationService{
		convs:  st.Conversations,
		users:  st.Users,
		unread: unread,
		pub:    pub,
		locks:  kmutex.New(),
		paging: paging,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreate returns the unique two-party conversation between userA and
// userB, creating it on first contact. Creation for a pair is serialised
// in-process by a keyed lock and across processes by the unique pair key.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, apperr.InvalidInput("participants", "both participants are required")
	}
	if userA == userB {
		return nil, apperr.InvalidOperation("cannot message yourself")
	}
	key := domain.PairKey(userA, userB)

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	c, err := s.convs.FindByPair(ctx, key)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	c = &domain.Conversation{
		ID:           utils.NewID(),
		Participants: []string{userA, userB},
		PairKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.convs.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// another instance won the race
			existing, ferr := s.convs.FindByPair(ctx, key)
			if ferr != nil {
				return nil, apperr.Internal(ferr)
			}
			return existing, nil
		}
		return nil, apperr.Internal(err)
	}
	s.log.Debugw("conversation created", "conversation_id", c.ID, "participants", c.Participants)
	publish(ctx, s.pub, s.log, events.ConversationCreated, c.ID, c)
	return c, nil
}

// Start resolves the conversation with the user called username and fills in
// the participants' display names.
func (s *ConversationService) Start(ctx context.Context, requesterID, username string) (*domain.Conversation, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, apperr.InvalidInput("username", "username is required")
	}
	target, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	c, err := s.FindOrCreate(ctx, requesterID, target.ID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	for _, id := range c.Participants {
		if id == target.ID {
			names[id] = target.Name()
			continue
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, apperr.Internal(err)
		}
		names[id] = u.Name()
	}
	if err := s.convs.SetParticipantNames(ctx, c.ID, names); err != nil {
		// names are a display cache only
		s.log.Warnw("participant names not cached", "conversation_id", c.ID, "error", err)
	}
	c.ParticipantNames = names
	return c, nil
}

// List returns the user's conversations, most recently active first, with
// per-conversation unread counts.
func (s *ConversationService) List(ctx context.Context, userID string, page, limit int) ([]*domain.ConversationSummary, error) {
	skip, size := s.paging.Window(page, limit)
	convs, err := s.convs.ListForUser(ctx, userID, skip, size)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]*domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		n, err := s.unread.ForConversation(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		sum := &domain.ConversationSummary{Conversation: c, UnreadCount: n}
		if other := c.Other(userID); other != "" {
			sum.OtherUser = &domain.UserRef{ID: other}
			u, err := s.users.GetByID(ctx, other)
			switch {
			case err == nil:
				sum.OtherUser = u.Ref()
			case !errors.Is(err, repository.ErrNotFound):
				return nil, apperr.Internal(err)
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"github.com/fathima-sithara/pixshare-service/internal/utils"
	"go.uber.org/zap"
)

const maxCommentLength = 500

// SocialService owns posts, likes, comments and follows. Each action that
// targets another user goes through the notification side-channel; a failed
// notification never fails the action.
type SocialService struct {
	posts    repository.PostRepository
	follows  repository.FollowRepository
	users    repository.UserRepository
	notifier *NotificationService
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewSocialService(st *repository.Store, notifier *NotificationService, log *zap.SugaredLogger) *SocialService {
	return &SocialService{
		posts:    st.Posts,
		follows:  st.Follows,
		users:    st.Users,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreatePostCommand struct {
	AuthorID string
	Title    string
	Caption  string
	Image    string
}

func (s *SocialService) notify(ctx context.Context, cmd NotifyCommand) {
	if _, _, err := s.notifier.Notify(ctx, cmd); err != nil {
		s.log.Warnw("notification failed", "type", cmd.Type, "recipient", cmd.RecipientID, "error", err)
	}
}

func (s *SocialService) CreatePost(ctx context.Context, cmd CreatePostCommand) (*domain.Post, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" || utf8.RuneCountInString(title) > 120 {
		return nil, apperr.InvalidInput("title", "title must be 1-120 characters")
	}
	if strings.TrimSpace(cmd.Image) == "" {
		return nil, apperr.InvalidInput("image", "image is required")
	}
	if utf8.RuneCountInString(cmd.Caption) > 2200 {
		return nil, apperr.InvalidInput("caption", "caption must be at most 2200 characters")
	}
	p := &domain.Post{
		ID:        utils.NewID(),
		AuthorID:  cmd.AuthorID,
		Title:     title,
		Caption:   strings.TrimSpace(cmd.Caption),
		Image:     strings.TrimSpace(cmd.Image),
		Likes:     []string{},
		CreatedAt: s.now(),
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}

	followers, err := s.follows.Followers(ctx, cmd.AuthorID)
	if err != nil {
		s.log.Warnw("followers lookup failed", "author", cmd.AuthorID, "error", err)
		return p, nil
	}
	for _, f := range followers {
		s.notify(ctx, NotifyCommand{RecipientID: f, SenderID: cmd.AuthorID, Type: domain.NotifyPost, PostID: p.ID, PostTitle: p.Title})
	}
	return p, nil
}

func (s *SocialService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return p, nil
}

// ToggleLike likes or unlikes a post and returns the new state.
func (s *SocialService) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return false, storeErr(err, "post")
	}
	liked, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, storeErr(err, "post")
	}
	if liked {
		s.notify(ctx, NotifyCommand{RecipientID: p.AuthorID, SenderID: userID, Type: domain.NotifyLike, PostID: p.ID, PostTitle: p.Title})
	}
	return liked, nil
}

func (s *SocialService) AddComment(ctx context.Context, postID, userID, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxCommentLength {
		return nil, apperr.InvalidInput("text", "text must be 1-500 characters")
	}
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	c := &domain.Comment{
		ID:        utils.NewID(),
		PostID:    postID,
		AuthorID:  userID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.posts.AddComment(ctx, c); err != nil {
		return nil, storeErr(err, "post")
	}
	s.notify(ctx, NotifyCommand{RecipientID: p.AuthorID, SenderID: userID, Type: domain.NotifyComment, PostID: p.ID, CommentID: c.ID, PostTitle: p.Title})
	return c, nil
}

// ToggleFollow follows or unfollows followeeID and returns the new state.
func (s *SocialService) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, apperr.InvalidOperation("cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, followeeID); err != nil {
		return false, storeErr(err, "user")
	}
	following, err := s.follows.Toggle(ctx, followerID, followeeID)
	if err != nil {
		return false, apperr.Internal(err)
	}
	if following {
		s.notify(ctx, NotifyCommand{RecipientID: followeeID, SenderID: followerID, Type: domain.NotifyFollow})
	}
	return following, nil
}

package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"go.uber.org/zap"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// Presence reports whether a user has a live connection anywhere.
type Presence interface {
	IsOnline(ctx context.Context, userID string) bool
}

type UserService struct {
	users    repository.UserRepository
	presence Presence
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewUserService(st *repository.Store, presence Presence, log *zap.SugaredLogger) *UserService {
	return &UserService{
		users:    st.Users,
		presence: presence,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ProfileCommand struct {
	UserID      string
	Username    string
	DisplayName string
	Avatar      string
}

type Profile struct {
	*domain.User
	Online bool `json:"online"`
}

// UpsertProfile creates or updates the caller's directory entry.
func (s *UserService) UpsertProfile(ctx context.Context, cmd ProfileCommand) (*domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(cmd.Username))
	if !usernamePattern.MatchString(username) {
		return nil, apperr.InvalidInput("username", "username must be 3-30 characters of a-z, 0-9, _ or .")
	}
	display := strings.TrimSpace(cmd.DisplayName)
	if len([]rune(display)) > 60 {
		return nil, apperr.InvalidInput("displayName", "displayName must be at most 60 characters")
	}

	now := s.now()
	u := &domain.User{
		ID:          cmd.UserID,
		Username:    username,
		DisplayName: display,
		Avatar:      strings.TrimSpace(cmd.Avatar),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.InvalidInput("username", "username already taken")
		}
		return nil, apperr.Internal(err)
	}
	stored, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return stored, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return s.profile(ctx, u), nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	u, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return s.profile(ctx, u), nil
}

func (s *UserService) profile(ctx context.Context, u *domain.User) *Profile {
	p := &Profile{User: u}
	if s.presence != nil {
		p.Online = s.presence.IsOnline(ctx, u.ID)
	}
	return p
}

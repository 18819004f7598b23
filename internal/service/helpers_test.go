package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"github.com/fathima-sithara/pixshare-service/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type push struct {
	UserID  string
	Event   string
	Payload interface{}
}

type fakeRelay struct {
	mu     sync.Mutex
	online map[string]bool
	pushes []push
}

func newFakeRelay(online ...string) *fakeRelay {
	r := &fakeRelay{online: map[string]bool{}}
	for _, id := range online {
		r.online[id] = true
	}
	return r
}

func (r *fakeRelay) PushTo(_ context.Context, userID, event string, payload interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.online[userID] {
		return false
	}
	r.pushes = append(r.pushes, push{UserID: userID, Event: event, Payload: payload})
	return true
}

func (r *fakeRelay) sent() []push {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]push(nil), r.pushes...)
}

type published struct {
	Event string
	Key   string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, event, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Event: event, Key: key})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

// clock is a settable time source shared by the services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	repos  *repository.Store
	relay  *fakeRelay
	pub    *fakePublisher
	clock  *clock
	unread *UnreadService
	convs  *ConversationService
	msgs   *MessageService
	notes  *NotificationService
	users  *UserService
	social *SocialService
}

func newEnv(t *testing.T, online ...string) *env {
	t.Helper()
	log := zap.NewNop().Sugar()
	repos := store.NewMemoryStore().Repositories()
	relay := newFakeRelay(online...)
	pub := &fakePublisher{}
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	e := &env{repos: repos, relay: relay, pub: pub, clock: clk}
	e.unread = NewUnreadService(repos)
	e.convs = NewConversationService(repos, e.unread, pub, DefaultPaging, log)
	e.convs.now = clk.now
	e.msgs = NewMessageService(repos, e.convs, relay, pub, DefaultPaging, log)
	e.msgs.now = clk.now
	e.notes = NewNotificationService(repos, relay, pub, DefaultDedupWindow, DefaultPaging, log)
	e.notes.now = clk.now
	e.users = NewUserService(repos, nil, log)
	e.users.now = clk.now
	e.social = NewSocialService(repos, e.notes, log)
	e.social.now = clk.now
	return e
}

// addUser registers a directory entry whose id and username are the same.
func (e *env) addUser(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := e.users.UpsertProfile(context.Background(), ProfileCommand{UserID: id, Username: id, DisplayName: "User " + id})
	require.NoError(t, err)
	return u
}

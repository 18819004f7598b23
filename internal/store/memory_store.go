package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
)

// MemoryStore keeps every collection in process memory. It backs the
// "memory" storage driver and the service tests. All values are copied in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	pairs         map[string]string // pair key -> conversation id
	messages      map[string]*domain.Message
	byConv        map[string][]string // conversation id -> message ids
	notifications map[string]*domain.Notification
	users         map[string]*domain.User
	posts         map[string]*domain.Post
	comments      map[string]*domain.Comment
	follows       map[string]map[string]time.Time // followee -> follower -> since
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*domain.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string]*domain.Message),
		byConv:        make(map[string][]string),
		notifications: make(map[string]*domain.Notification),
		users:         make(map[string]*domain.User),
		posts:         make(map[string]*domain.Post),
		comments:      make(map[string]*domain.Comment),
		follows:       make(map[string]map[string]time.Time),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *MemoryStore) Repositories() *repository.Store {
	return &repository.Store{
		Conversations: conversations{s},
		Messages:      messages{s},
		Notifications: notifications{s},
		Users:         users{s},
		Posts:         posts{s},
		Follows:       follows{s},
	}
}

func copyConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	if c.ParticipantNames != nil {
		out.ParticipantNames = make(map[string]string, len(c.ParticipantNames))
		for k, v := range c.ParticipantNames {
			out.ParticipantNames[k] = v
		}
	}
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		out.LastMessageAt = &t
	}
	return &out
}

func copyMessage(m *domain.Message) *domain.Message {
	out := *m
	out.ReadBy = append([]domain.ReadReceipt{}, m.ReadBy...)
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func copyUser(u *domain.User) *domain.User {
	out := *u
	if u.Prefs != nil {
		p := *u.Prefs
		out.Prefs = &p
	}
	return &out
}

func copyPost(p *domain.Post) *domain.Post {
	out := *p
	out.Likes = append([]string{}, p.Likes...)
	return &out
}

type conversations struct{ s *MemoryStore }

func (r conversations) FindByPair(_ context.Context, pairKey string) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.pairs[pairKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := r.s.conversations[id]
	if len(c.Participants) != 2 {
		return nil, repository.ErrNotFound
	}
	return copyConversation(c), nil
}

func (r conversations) Create(_ context.Context, c *domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.PairKey != "" {
		if _, ok := r.s.pairs[c.PairKey]; ok {
			return repository.ErrDuplicate
		}
		r.s.pairs[c.PairKey] = c.ID
	}
	r.s.conversations[c.ID] = copyConversation(c)
	return nil
}

func (r conversations) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyConversation(c), nil
}

func (r conversations) forUser(userID string) []*domain.Conversation {
	out := []*domain.Conversation{}
	for _, c := range r.s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out
}

func (r conversations) ListForUser(_ context.Context, userID string, skip, limit int64) ([]*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.forUser(userID)
	sort.Slice(all, func(i, j int) bool {
		return lastActivity(all[i]).After(lastActivity(all[j]))
	})
	out := []*domain.Conversation{}
	for _, c := range page(len(all), skip, limit) {
		out = append(out, copyConversation(all[c]))
	}
	return out, nil
}

func lastActivity(c *domain.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (r conversations) IDsForUser(_ context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := []string{}
	for _, c := range r.forUser(userID) {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r conversations) NextSeq(_ context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	c.MessageSeq++
	return c.MessageSeq, nil
}

func (r conversations) SetLastMessage(_ context.Context, id string, m *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	at := m.CreatedAt
	c.LastMessageID = m.ID
	c.LastMessageAt = &at
	c.LastMessagePreview = m.Preview()
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r conversations) SetParticipantNames(_ context.Context, id string, names map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.ParticipantNames = make(map[string]string, len(names))
	for k, v := range names {
		c.ParticipantNames[k] = v
	}
	return nil
}

type messages struct{ s *MemoryStore }

func (r messages) Insert(_ context.Context, m *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ReadBy == nil {
		m.ReadBy = []domain.ReadReceipt{}
	}
	r.s.messages[m.ID] = copyMessage(m)
	r.s.byConv[m.ConversationID] = append(r.s.byConv[m.ConversationID], m.ID)
	return nil
}

func (r messages) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyMessage(m), nil
}

func (r messages) AddReader(_ context.Context, id string, rr domain.ReadReceipt) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.IsReadBy(rr.UserID) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, rr)
	return true, nil
}

func (r messages) SoftDelete(_ context.Context, id string, at time.Time) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.IsDeleted = true
	m.DeletedAt = &at
	m.Content = domain.DeletedPlaceholder
	m.Image = ""
	return copyMessage(m), nil
}

func (r messages) ListVisible(_ context.Context, conversationID string, skip, limit int64) ([]*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	visible := []*domain.Message{}
	for _, id := range r.s.byConv[conversationID] {
		if m := r.s.messages[id]; !m.IsDeleted {
			visible = append(visible, m)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Seq > visible[j].Seq })
	out := []*domain.Message{}
	for _, i := range page(len(visible), skip, limit) {
		out = append(out, copyMessage(visible[i]))
	}
	return out, nil
}

func (r messages) CountUnread(_ context.Context, conversationIDs []string, userID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, cid := range conversationIDs {
		for _, id := range r.s.byConv[cid] {
			m := r.s.messages[id]
			if m.IsDeleted || m.SenderID == userID || m.IsReadBy(userID) {
				continue
			}
			n++
		}
	}
	return n, nil
}

func (r messages) CountAll(_ context.Context, conversationID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.byConv[conversationID])), nil
}

type notifications struct{ s *MemoryStore }

func (r notifications) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r notifications) ExistsSince(_ context.Context, key domain.NotificationKey, since time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, n := range r.s.notifications {
		if n.Key() == key && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r notifications) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r notifications) ListForRecipient(_ context.Context, recipientID string, skip, limit int64) ([]*domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := []*domain.Notification{}
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	out := []*domain.Notification{}
	for _, i := range page(len(all), skip, limit) {
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r notifications) CountUnread(_ context.Context, recipientID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var c int64
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			c++
		}
	}
	return c, nil
}

func (r notifications) SetRead(_ context.Context, id string, read bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.Read = read
	return nil
}

func (r notifications) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var c int64
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			c++
		}
	}
	return c, nil
}

func (r notifications) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.notifications, id)
	return nil
}

type users struct{ s *MemoryStore }

func (r users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (r users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r users) Upsert(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, other := range r.s.users {
		if id != u.ID && other.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	cur, ok := r.s.users[u.ID]
	if !ok {
		cp := copyUser(u)
		if cp.Prefs == nil {
			p := domain.DefaultNotificationPrefs()
			cp.Prefs = &p
		}
		r.s.users[u.ID] = cp
		return nil
	}
	cur.Username = u.Username
	cur.DisplayName = u.DisplayName
	cur.Avatar = u.Avatar
	cur.UpdatedAt = u.UpdatedAt
	return nil
}

func (r users) UpdatePrefs(_ context.Context, id string, prefs domain.NotificationPrefs) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Prefs = &prefs
	return nil
}

type posts struct{ s *MemoryStore }

func (r posts) Create(_ context.Context, p *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.posts[p.ID] = copyPost(p)
	return nil
}

func (r posts) GetByID(_ context.Context, id string) (*domain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPost(p), nil
}

func (r posts) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return false, nil
		}
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

func (r posts) AddComment(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[c.PostID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *c
	r.s.comments[c.ID] = &cp
	p.CommentCount++
	return nil
}

type follows struct{ s *MemoryStore }

func (r follows) Toggle(_ context.Context, followerID, followeeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := r.s.follows[followeeID]
	if set == nil {
		set = make(map[string]time.Time)
		r.s.follows[followeeID] = set
	}
	if _, ok := set[followerID]; ok {
		delete(set, followerID)
		return false, nil
	}
	set[followerID] = time.Now().UTC()
	return true, nil
}

func (r follows) Followers(_ context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []string{}
	for id := range r.s.follows[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// page returns the indexes of a skip/limit window over n items.
func page(n int, skip, limit int64) []int {
	start := int(skip)
	if start > n {
		start = n
	}
	end := n
	if limit > 0 && start+int(limit) < n {
		end = start + int(limit)
	}
	idx := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	return idx
}

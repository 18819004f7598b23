package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/auth"
	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/fathima-sithara/pixshare-service/internal/service"
	"github.com/fathima-sithara/pixshare-service/internal/store"
	"github.com/fathima-sithara/pixshare-service/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type recordingSink struct {
	mu     sync.Mutex
	frames []string
}

func (s *recordingSink) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(frame))
	return true
}

func (s *recordingSink) Close() {}

type harness struct {
	app *fiber.App
	hub *ws.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop().Sugar()
	repos := store.NewMemoryStore().Repositories()
	hub := ws.NewHub(log)
	pub := events.Noop{}

	unread := service.NewUnreadService(repos)
	convs := service.NewConversationService(repos, unread, pub, service.DefaultPaging, log)
	notes := service.NewNotificationService(repos, hub, pub, service.DefaultDedupWindow, service.DefaultPaging, log)
	svc := Services{
		Conversations: convs,
		Messages:      service.NewMessageService(repos, convs, hub, pub, service.DefaultPaging, log),
		Unread:        unread,
		Notifications: notes,
		Users:         service.NewUserService(repos, hub, log),
		Social:        service.NewSocialService(repos, notes, log),
	}

	jv, err := auth.NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)
	app := NewServer(svc, jv, Options{AppName: "test"}, log)
	return &harness{app: app, hub: hub}
}

func bearer(t *testing.T, uid string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

type reply struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func (h *harness) do(t *testing.T, method, path, uid string, body interface{}) (int, reply) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", bearer(t, uid))
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var r reply
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &r), string(raw))
	}
	return resp.StatusCode, r
}

func decodeData(t *testing.T, r reply, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, dst))
}

func (h *harness) signup(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		code, r := h.do(t, "PUT", "/users/me", id, map[string]string{"username": id, "displayName": strings.ToUpper(id)})
		require.Equal(t, fiber.StatusOK, code, r.Message)
	}
}

func TestHealthAndAuth(t *testing.T) {
	h := newHarness(t)

	code, r := h.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", r.Status)

	code, r = h.do(t, "GET", "/conversations", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", r.Code)
}

func TestSendReadAndUnreadFlow(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana", "bob")
	bobSink := &recordingSink{}
	h.hub.Register(context.Background(), "bob", bobSink)

	code, r := h.do(t, "POST", "/messages/send", "ana", map[string]string{"recipientId": "bob", "content": "hello"})
	require.Equal(t, fiber.StatusCreated, code, r.Message)
	var msg struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		SenderID       string `json:"sender_id"`
		Content        string `json:"content"`
		Type           string `json:"message_type"`
	}
	decodeData(t, r, &msg)
	assert.Equal(t, "ana", msg.SenderID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "text", msg.Type)

	require.Len(t, bobSink.frames, 1)
	assert.Contains(t, bobSink.frames[0], `"event":"newMessage"`)
	assert.Contains(t, bobSink.frames[0], msg.ID)

	var count struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	_, r = h.do(t, "GET", "/messages/unread/count", "bob", nil)
	decodeData(t, r, &count)
	assert.Equal(t, int64(1), count.UnreadCount)

	code, r = h.do(t, "PUT", "/messages/"+msg.ID+"/read", "ana", nil)
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Equal(t, "access denied", r.Message)

	code, r = h.do(t, "GET", "/messages/"+msg.ConversationID, "bob", nil)
	require.Equal(t, fiber.StatusOK, code)
	var page struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	decodeData(t, r, &page)
	require.Len(t, page.Messages, 1)

	_, r = h.do(t, "GET", "/messages/unread/count", "bob", nil)
	decodeData(t, r, &count)
	assert.Equal(t, int64(0), count.UnreadCount)

	code, _ = h.do(t, "GET", "/messages/"+msg.ConversationID, "cat", nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	var convs struct {
		Conversations []struct {
			UnreadCount int64 `json:"unread_count"`
			OtherUser   struct {
				ID string `json:"id"`
			} `json:"other_user"`
		} `json:"conversations"`
	}
	_, r = h.do(t, "GET", "/conversations", "ana", nil)
	decodeData(t, r, &convs)
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, "bob", convs.Conversations[0].OtherUser.ID)
}

func TestSendErrors(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana", "bob")

	cases := []struct {
		name   string
		body   map[string]string
		status int
		code   string
		field  string
	}{
		{"self", map[string]string{"recipientId": "ana", "content": "hi"}, 400, "INVALID_OPERATION", ""},
		{"missing recipient", map[string]string{"content": "hi"}, 400, "INVALID_INPUT", "recipientId"},
		{"bad type", map[string]string{"recipientId": "bob", "content": "hi", "messageType": "video"}, 400, "INVALID_INPUT", "messageType"},
		{"too long", map[string]string{"recipientId": "bob", "content": strings.Repeat("x", 1001)}, 400, "INVALID_INPUT", "content"},
		{"unknown recipient", map[string]string{"recipientId": "ghost", "content": "hi"}, 404, "NOT_FOUND", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, r := h.do(t, "POST", "/messages/send", "ana", tc.body)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, "error", r.Status)
			assert.Equal(t, tc.code, r.Code)
			assert.Equal(t, tc.field, r.Field)
		})
	}

	code, _ := h.do(t, "GET", "/conversations", "ana", nil)
	require.Equal(t, fiber.StatusOK, code)
}

func TestDeleteMessage(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana", "bob")

	_, r := h.do(t, "POST", "/messages/send", "ana", map[string]string{"recipientId": "bob", "content": "oops"})
	var msg struct {
		ID string `json:"id"`
	}
	decodeData(t, r, &msg)

	code, _ := h.do(t, "DELETE", "/messages/"+msg.ID, "bob", nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, r = h.do(t, "DELETE", "/messages/"+msg.ID, "ana", nil)
	require.Equal(t, fiber.StatusOK, code)
	var deleted struct {
		Content   string `json:"content"`
		IsDeleted bool   `json:"is_deleted"`
	}
	decodeData(t, r, &deleted)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, "This message was deleted", deleted.Content)

	code, r = h.do(t, "DELETE", "/messages/nope", "ana", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", r.Code)
}

func TestStartConversation(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana", "bob")

	code, r := h.do(t, "POST", "/conversation/start", "ana", map[string]string{"username": "BOB"})
	require.Equal(t, fiber.StatusOK, code, r.Message)
	var conv struct {
		ID           string            `json:"id"`
		Participants []string          `json:"participants"`
		Names        map[string]string `json:"participant_names"`
	}
	decodeData(t, r, &conv)
	assert.Equal(t, []string{"ana", "bob"}, conv.Participants)
	assert.Equal(t, "BOB", conv.Names["bob"])

	code, r = h.do(t, "POST", "/conversation/start", "ana", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "username", r.Field)
}

func TestNotificationEndpoints(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana", "bob")
	bobSink := &recordingSink{}
	h.hub.Register(context.Background(), "bob", bobSink)

	code, r := h.do(t, "POST", "/posts", "bob", map[string]string{"title": "sunset", "image": "https://cdn/x.jpg"})
	require.Equal(t, fiber.StatusCreated, code, r.Message)
	var post struct {
		ID string `json:"id"`
	}
	decodeData(t, r, &post)

	for i := 0; i < 2; i++ {
		code, _ = h.do(t, "POST", "/posts/"+post.ID+"/like", "ana", nil)
		require.Equal(t, fiber.StatusOK, code)
	}
	code, _ = h.do(t, "POST", "/posts/"+post.ID+"/like", "ana", nil)
	require.Equal(t, fiber.StatusOK, code)

	var list struct {
		Notifications []struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		} `json:"notifications"`
		UnreadCount int64 `json:"unreadCount"`
	}
	_, r = h.do(t, "GET", "/notifications", "bob", nil)
	decodeData(t, r, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, int64(1), list.UnreadCount)
	assert.Equal(t, `ana liked your post "sunset"`, list.Notifications[0].Message)
	assert.Len(t, bobSink.frames, 1)
	assert.Contains(t, bobSink.frames[0], `"event":"newNotification"`)

	id := list.Notifications[0].ID
	code, _ = h.do(t, "PUT", "/notifications/"+id+"/read", "ana", map[string]bool{"read": true})
	assert.Equal(t, fiber.StatusForbidden, code)
	code, _ = h.do(t, "PUT", "/notifications/"+id+"/read", "bob", map[string]bool{"read": true})
	assert.Equal(t, fiber.StatusOK, code)

	var count struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	_, r = h.do(t, "GET", "/notifications/unread/count", "bob", nil)
	decodeData(t, r, &count)
	assert.Equal(t, int64(0), count.UnreadCount)

	code, r = h.do(t, "PUT", "/notifications/preferences", "bob", map[string]bool{"likes": false})
	require.Equal(t, fiber.StatusOK, code)
	var prefs map[string]bool
	decodeData(t, r, &prefs)
	assert.Equal(t, map[string]bool{"likes": false, "comments": true, "follows": true, "posts": true}, prefs)

	code, _ = h.do(t, "DELETE", "/notifications/"+id, "bob", nil)
	assert.Equal(t, fiber.StatusOK, code)
}

type notificationList struct {
	Notifications []struct {
		RecipientID string `json:"recipient_id"`
		SenderID    string `json:"sender_id"`
		Type        string `json:"type"`
		PostID      string `json:"post_id"`
		Message     string `json:"message"`
	} `json:"notifications"`
}

func (h *harness) notifications(t *testing.T, uid string) notificationList {
	t.Helper()
	code, r := h.do(t, "GET", "/notifications", uid, nil)
	require.Equal(t, fiber.StatusOK, code, r.Message)
	var list notificationList
	decodeData(t, r, &list)
	return list
}

// Ids travel through path params here, so they must stay intact once the
// request that carried them is gone.
func TestSocialActionsNotifyOverHTTP(t *testing.T) {
	h := newHarness(t)
	const ana, bob = "a0a000000000000000000001", "b0b000000000000000000002"
	h.signup(t, ana, bob)

	code, r := h.do(t, "POST", "/users/"+bob+"/follow", ana, nil)
	require.Equal(t, fiber.StatusOK, code, r.Message)
	var follow struct {
		Following bool `json:"following"`
	}
	decodeData(t, r, &follow)
	assert.True(t, follow.Following)

	code, _ = h.do(t, "GET", "/users/me", ana, nil)
	require.Equal(t, fiber.StatusOK, code)

	list := h.notifications(t, bob)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, bob, list.Notifications[0].RecipientID)
	assert.Equal(t, ana, list.Notifications[0].SenderID)
	assert.Equal(t, ana+" started following you", list.Notifications[0].Message)

	code, r = h.do(t, "POST", "/posts", bob, map[string]string{"title": "harbour", "image": "https://cdn/h.jpg"})
	require.Equal(t, fiber.StatusCreated, code, r.Message)
	var post struct {
		ID string `json:"id"`
	}
	decodeData(t, r, &post)

	list = h.notifications(t, ana)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, "post", list.Notifications[0].Type)
	assert.Equal(t, post.ID, list.Notifications[0].PostID)

	code, r = h.do(t, "POST", "/posts/"+post.ID+"/like", ana, nil)
	require.Equal(t, fiber.StatusOK, code, r.Message)
	code, r = h.do(t, "POST", "/posts/"+post.ID+"/comments", ana, map[string]string{"text": "lovely"})
	require.Equal(t, fiber.StatusCreated, code, r.Message)
	code, _ = h.do(t, "GET", "/posts/"+post.ID, bob, nil)
	require.Equal(t, fiber.StatusOK, code)

	byType := map[string]string{}
	for _, n := range h.notifications(t, bob).Notifications {
		assert.Equal(t, bob, n.RecipientID)
		byType[n.Type] = n.PostID
	}
	assert.Equal(t, map[string]string{"follow": "", "like": post.ID, "comment": post.ID}, byType)

	code, r = h.do(t, "POST", "/users/"+bob+"/follow", ana, nil)
	require.Equal(t, fiber.StatusOK, code, r.Message)
	decodeData(t, r, &follow)
	assert.False(t, follow.Following)

	code, _ = h.do(t, "POST", "/posts", bob, map[string]string{"title": "pier", "image": "https://cdn/p.jpg"})
	require.Equal(t, fiber.StatusCreated, code)
	assert.Len(t, h.notifications(t, ana).Notifications, 1)
}

func TestFollowSelfAndMediaUnavailable(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana")

	code, r := h.do(t, "POST", "/users/ana/follow", "ana", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "INVALID_OPERATION", r.Code)

	code, r = h.do(t, "GET", "/users/ANA", "bob", nil)
	require.Equal(t, fiber.StatusOK, code)
	var p struct {
		ID     string `json:"id"`
		Online bool   `json:"online"`
	}
	decodeData(t, r, &p)
	assert.Equal(t, "ana", p.ID)
	assert.False(t, p.Online)

	code, r = h.do(t, "POST", "/media/images", "ana", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", r.Code)
}

func TestUsernameTaken(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ana")
	code, r := h.do(t, "PUT", "/users/me", "someone-else", map[string]string{"username": "ana"})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "username", r.Field)
	assert.Equal(t, "username already taken", r.Message)
}

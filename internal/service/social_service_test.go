package service

import (
	"context"
	"testing"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoLikesWithinWindowNotifyOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "ana")
	e.addUser(t, "bob")

	p, err := e.social.CreatePost(ctx, CreatePostCommand{AuthorID: "bob", Title: "sunset", Image: "https://cdn/s.jpg"})
	require.NoError(t, err)

	liked, err := e.social.ToggleLike(ctx, p.ID, "ana")
	require.NoError(t, err)
	assert.True(t, liked)
	e.clock.advance(3 * time.Second)
	liked, err = e.social.ToggleLike(ctx, p.ID, "ana")
	require.NoError(t, err)
	assert.False(t, liked)
	e.clock.advance(3 * time.Second)
	liked, err = e.social.ToggleLike(ctx, p.ID, "ana")
	require.NoError(t, err)
	assert.True(t, liked)

	items, _, err := e.notes.List(ctx, "bob", 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.NotifyLike, items[0].Type)
	assert.Equal(t, p.ID, items[0].PostID)
}

func TestOwnLikeDoesNotNotify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "bob")

	p, err := e.social.CreatePost(ctx, CreatePostCommand{AuthorID: "bob", Title: "mine", Image: "x"})
	require.NoError(t, err)
	_, err = e.social.ToggleLike(ctx, p.ID, "bob")
	require.NoError(t, err)

	count, err := e.notes.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCommentNotifiesAuthor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "ana")
	e.addUser(t, "bob")

	p, err := e.social.CreatePost(ctx, CreatePostCommand{AuthorID: "bob", Title: "sunset", Image: "x"})
	require.NoError(t, err)

	_, err = e.social.AddComment(ctx, p.ID, "ana", "   ")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	c, err := e.social.AddComment(ctx, p.ID, "ana", "lovely")
	require.NoError(t, err)

	items, _, err := e.notes.List(ctx, "bob", 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, c.ID, items[0].CommentID)
	assert.Equal(t, `ana commented on your post "sunset"`, items[0].Message)

	stored, err := e.social.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.CommentCount)
}

func TestFollowAndPostFanOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "ana")
	e.addUser(t, "bob")
	e.addUser(t, "cat")

	_, err := e.social.ToggleFollow(ctx, "ana", "ana")
	assert.True(t, apperr.Is(err, apperr.KindInvalidOperation))
	_, err = e.social.ToggleFollow(ctx, "ana", "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	for _, f := range []string{"ana", "cat"} {
		following, err := e.social.ToggleFollow(ctx, f, "bob")
		require.NoError(t, err)
		assert.True(t, following)
	}

	_, err = e.social.CreatePost(ctx, CreatePostCommand{AuthorID: "bob", Title: "new", Image: "x"})
	require.NoError(t, err)

	for _, f := range []string{"ana", "cat"} {
		items, _, err := e.notes.List(ctx, f, 1, 20)
		require.NoError(t, err)
		require.Len(t, items, 1, f)
		assert.Equal(t, `bob shared a new post "new"`, items[0].Message)
	}

	bobs, _, err := e.notes.List(ctx, "bob", 1, 20)
	require.NoError(t, err)
	assert.Len(t, bobs, 2)
}

func TestCreatePostValidation(t *testing.T) {
	e := newEnv(t)
	_, err := e.social.CreatePost(context.Background(), CreatePostCommand{AuthorID: "bob", Title: "", Image: "x"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	_, err = e.social.CreatePost(context.Background(), CreatePostCommand{AuthorID: "bob", Title: "t"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestUpsertProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.users.UpsertProfile(ctx, ProfileCommand{UserID: "u1", Username: " Ana.B ", DisplayName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana.b", u.Username)

	_, err = e.users.UpsertProfile(ctx, ProfileCommand{UserID: "u2", Username: "ana.b"})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "username", ae.Field)

	_, err = e.users.UpsertProfile(ctx, ProfileCommand{UserID: "u3", Username: "x!"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	p, err := e.users.GetByUsername(ctx, "ANA.B")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.False(t, p.Online)
}

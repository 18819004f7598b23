package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests talk to a real server and only run when MONGO_TEST_URI is set.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, err := NewMongoClient(ctx, uri, 10*time.Second)
	require.NoError(t, err)

	db := client.Database("pixshare_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	st, err := NewMongoStore(ctx, db)
	require.NoError(t, err)
	return st
}

func TestMongoConversationPairIsUnique(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c1 := &domain.Conversation{ID: uuid.NewString(), Participants: []string{"a", "b"}, PairKey: domain.PairKey("a", "b"), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.Conversations.Create(ctx, c1))

	c2 := &domain.Conversation{ID: uuid.NewString(), Participants: []string{"b", "a"}, PairKey: domain.PairKey("b", "a"), CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, st.Conversations.Create(ctx, c2), ErrDuplicate)

	got, err := st.Conversations.FindByPair(ctx, domain.PairKey("b", "a"))
	require.NoError(t, err)
	assert.Equal(t, c1.ID, got.ID)

	seq1, err := st.Conversations.NextSeq(ctx, c1.ID)
	require.NoError(t, err)
	seq2, err := st.Conversations.NextSeq(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, seq1+1, seq2)
}

func TestMongoMessageReadAndDelete(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	m := &domain.Message{ID: uuid.NewString(), ConversationID: "c1", Seq: 1, SenderID: "a", Content: "hello", Type: domain.MessageText, CreatedAt: now}
	require.NoError(t, st.Messages.Insert(ctx, m))

	added, err := st.Messages.AddReader(ctx, m.ID, domain.ReadReceipt{UserID: "b", ReadAt: now})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = st.Messages.AddReader(ctx, m.ID, domain.ReadReceipt{UserID: "b", ReadAt: now})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := st.Messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, got.ReadBy, 1)

	n, err := st.Messages.CountUnread(ctx, []string{"c1"}, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	del, err := st.Messages.SoftDelete(ctx, m.ID, now)
	require.NoError(t, err)
	assert.True(t, del.IsDeleted)
	assert.Equal(t, domain.DeletedPlaceholder, del.Content)

	visible, err := st.Messages.ListVisible(ctx, "c1", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, visible)

	total, err := st.Messages.CountAll(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func NewMongoClient(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// NewMongoStore builds every repository over one database and ensures indexes.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	convs := NewConversationRepo(db)
	msgs := NewMessageRepo(db)
	notes := NewNotificationRepo(db)
	users := NewUserRepo(db)
	posts := NewPostRepo(db)
	follows := NewFollowRepo(db)

	for _, ensure := range []func(context.Context) error{
		convs.EnsureIndexes,
		msgs.EnsureIndexes,
		notes.EnsureIndexes,
		users.EnsureIndexes,
		posts.EnsureIndexes,
		follows.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return nil, err
		}
	}

	return &Store{
		Conversations: convs,
		Messages:      msgs,
		Notifications: notes,
		Users:         users,
		Posts:         posts,
		Follows:       follows,
	}, nil
}

func opTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

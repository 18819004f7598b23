package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepo struct {
	coll *mongo.Collection
}

func NewNotificationRepo(db *mongo.Database) *NotificationRepo {
	return &NotificationRepo{coll: db.Collection("notifications")}
}

func (r *NotificationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetBackground(true),
		},
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "sender_id", Value: 1},
				{Key: "type", Value: 1},
				{Key: "post_id", Value: 1},
				{Key: "comment_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetBackground(true).SetName("dedup_tuple"),
		},
	})
	return err
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, n)
	return err
}

func (r *NotificationRepo) ExistsSince(ctx context.Context, key domain.NotificationKey, since time.Time) (bool, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"recipient_id": key.RecipientID,
		"sender_id":    key.SenderID,
		"type":         key.Type,
		"post_id":      key.PostID,
		"comment_id":   key.CommentID,
		"created_at":   bson.M{"$gte": since},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	var n domain.Notification
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID string, skip, limit int64) ([]*domain.Notification, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(skip).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"recipient_id": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	return r.coll.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "read": false})
}

func (r *NotificationRepo) SetRead(ctx context.Context, id string, read bool) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"read": read}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	res, err := r.coll.UpdateMany(ctx, bson.M{"recipient_id": recipientID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

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

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection("messages")}
}

func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: -1}},
			Options: options.Index().SetBackground(true),
		},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "is_deleted", Value: 1}},
			Options: options.Index().SetBackground(true),
		},
	})
	return err
}

func normalizeMessage(m *domain.Message) {
	if m.ReadBy == nil {
		m.ReadBy = []domain.ReadReceipt{}
	}
}

func (r *MessageRepo) Insert(ctx context.Context, m *domain.Message) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	normalizeMessage(m)
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	var m domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalizeMessage(&m)
	return &m, nil
}

func (r *MessageRepo) AddReader(ctx context.Context, id string, rr domain.ReadReceipt) (bool, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	// the filter only matches while the reader is absent, so concurrent
	// calls add at most one receipt
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "read_by.user_id": bson.M{"$ne": rr.UserID}},
		bson.M{"$push": bson.M{"read_by": rr}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id string, at time.Time) (*domain.Message, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	res := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"is_deleted": true,
				"deleted_at": at,
				"content":    domain.DeletedPlaceholder,
			},
			"$unset": bson.M{"image": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m domain.Message
	if err := res.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalizeMessage(&m)
	return &m, nil
}

func (r *MessageRepo) ListVisible(ctx context.Context, conversationID string, skip, limit int64) ([]*domain.Message, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}).SetSkip(skip).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"conversation_id": conversationID, "is_deleted": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		normalizeMessage(&m)
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationIDs []string, userID string) (int64, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	return r.coll.CountDocuments(ctx, bson.M{
		"conversation_id": bson.M{"$in": conversationIDs},
		"sender_id":       bson.M{"$ne": userID},
		"read_by.user_id": bson.M{"$ne": userID},
		"is_deleted":      false,
	})
}

func (r *MessageRepo) CountAll(ctx context.Context, conversationID string) (int64, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	return r.coll.CountDocuments(ctx, bson.M{"conversation_id": conversationID})
}

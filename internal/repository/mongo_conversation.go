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

type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{coll: db.Collection("conversations")}
}

func (r *ConversationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair_key"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}},
			Options: options.Index().SetBackground(true),
		},
	})
	return err
}

func (r *ConversationRepo) FindByPair(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	var c domain.Conversation
	filter := bson.M{"pair_key": pairKey, "participants": bson.M{"$size": 2}}
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	var c domain.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string, skip, limit int64) ([]*domain.Conversation, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Conversation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ConversationRepo) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	cur, err := r.coll.Find(ctx, bson.M{"participants": userID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []string{}
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

func (r *ConversationRepo) NextSeq(ctx context.Context, id string) (int64, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	res := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"message_seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"message_seq": 1}),
	)
	var row struct {
		Seq int64 `bson:"message_seq"`
	}
	if err := res.Decode(&row); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return row.Seq, nil
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, id string, m *domain.Message) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"last_message_id":      m.ID,
		"last_message_at":      m.CreatedAt,
		"last_message_preview": m.Preview(),
		"updated_at":           time.Now().UTC(),
	}})
	return err
}

func (r *ConversationRepo) SetParticipantNames(ctx context.Context, id string, names map[string]string) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"participant_names": names}})
	return err
}

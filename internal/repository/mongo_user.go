package repository

import (
	"context"
	"errors"

	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection("users")}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_username"),
	})
	return err
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	var u domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	update := bson.M{
		"$set": bson.M{
			"username":     u.Username,
			"display_name": u.DisplayName,
			"avatar":       u.Avatar,
			"updated_at":   u.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at":         u.CreatedAt,
			"notification_prefs": domain.DefaultNotificationPrefs(),
		},
	}
	_, err := r.coll.UpdateByID(ctx, u.ID, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *UserRepo) UpdatePrefs(ctx context.Context, id string, prefs domain.NotificationPrefs) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"notification_prefs": prefs}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

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

type PostRepo struct {
	posts    *mongo.Collection
	comments *mongo.Collection
}

func NewPostRepo(db *mongo.Database) *PostRepo {
	return &PostRepo{posts: db.Collection("posts"), comments: db.Collection("comments")}
}

func (r *PostRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetBackground(true),
	}); err != nil {
		return err
	}
	_, err := r.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetBackground(true),
	})
	return err
}

func (r *PostRepo) Create(ctx context.Context, p *domain.Post) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	_, err := r.posts.InsertOne(ctx, p)
	return err
}

func (r *PostRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	var p domain.Post
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return &p, nil
}

func (r *PostRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	// try to remove first; if nothing was pulled the user had not liked it
	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}},
	)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount > 0 {
		return false, nil
	}
	res, err = r.posts.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$addToSet": bson.M{"likes": userID}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return true, nil
}

func (r *PostRepo) AddComment(ctx context.Context, c *domain.Comment) error {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	if _, err := r.comments.InsertOne(ctx, c); err != nil {
		return err
	}
	_, err := r.posts.UpdateByID(ctx, c.PostID, bson.M{"$inc": bson.M{"comment_count": 1}})
	return err
}

type FollowRepo struct {
	coll *mongo.Collection
}

func NewFollowRepo(db *mongo.Database) *FollowRepo {
	return &FollowRepo{coll: db.Collection("follows")}
}

func (r *FollowRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "follower_id", Value: 1}, {Key: "followee_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_follow"),
		},
		{
			Keys:    bson.D{{Key: "followee_id", Value: 1}},
			Options: options.Index().SetBackground(true),
		},
	})
	return err
}

func (r *FollowRepo) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	filter := bson.M{"follower_id": followerID, "followee_id": followeeID}
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	if res.DeletedCount > 0 {
		return false, nil
	}
	_, err = r.coll.InsertOne(ctx, domain.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *FollowRepo) Followers(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := opTimeout(ctx)
	defer cancel()
	cur, err := r.coll.Find(ctx, bson.M{"followee_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []string{}
	for cur.Next(ctx) {
		var f domain.Follow
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		out = append(out, f.FollowerID)
	}
	return out, cur.Err()
}

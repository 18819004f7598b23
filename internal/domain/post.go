package domain

import "time"

type Post struct {
	ID           string    `bson:"_id" json:"id"`
	AuthorID     string    `bson:"author_id" json:"author_id"`
	Title        string    `bson:"title" json:"title"`
	Caption      string    `bson:"caption" json:"caption"`
	Image        string    `bson:"image" json:"image"`
	Likes        []string  `bson:"likes" json:"likes"`
	CommentCount int64     `bson:"comment_count" json:"comment_count"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

type Comment struct {
	ID        string    `bson:"_id" json:"id"`
	PostID    string    `bson:"post_id" json:"post_id"`
	AuthorID  string    `bson:"author_id" json:"author_id"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Follow struct {
	FollowerID string    `bson:"follower_id" json:"follower_id"`
	FolloweeID string    `bson:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Media is an image stored on the media host.
type Media struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

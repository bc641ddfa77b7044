package models

import "time"

// Like marks that a user currently likes a post. At most one row may exist per
// (post, user) pair; row existence is the source of truth for liked state and
// posts.likes must equal the count of rows referencing the post.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_likes_post_user;not null" json:"post_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_likes_post_user;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

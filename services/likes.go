package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"iblog/models"
)

var (
	// ErrUnauthenticated is returned when a like toggle is attempted without a logged-in user.
	ErrUnauthenticated = errors.New("not logged in")
	// ErrPostNotFound is returned when the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")
)

// LikeService flips the per-user like relation on posts and keeps the
// denormalized posts.likes counter consistent with the junction table.
// All counter writes in the application go through this service.
type LikeService struct {
	db *gorm.DB
}

// NewLikeService creates a LikeService over the given database handle.
func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{db: db}
}

// Toggle likes the post on behalf of the user, or removes the like when one
// already exists, and returns the new liked state together with the committed
// counter value. The whole flip runs inside a single transaction so the
// junction row and the counter always move together. Losing an insert race on
// the (post_id, user_id) unique key means another request committed the same
// like first; that is absorbed with one internal retry instead of surfacing.
func (s *LikeService) Toggle(ctx context.Context, postID, userID uint) (bool, int64, error) {
	if userID == 0 {
		return false, 0, ErrUnauthenticated
	}

	liked, likes, err := s.toggleOnce(ctx, postID, userID)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		liked, likes, err = s.toggleOnce(ctx, postID, userID)
	}
	return liked, likes, err
}

func (s *LikeService) toggleOnce(ctx context.Context, postID, userID uint) (bool, int64, error) {
	var liked bool
	var likes int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("load post: %w", err)
		}

		// Delete first: RowsAffected tells us whether the like existed
		// without a separate check-then-act read.
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return fmt.Errorf("delete like: %w", res.Error)
		}

		if res.RowsAffected > 0 {
			// The CASE guard keeps the counter non-negative even if it had drifted.
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).
				UpdateColumn("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")).Error; err != nil {
				return fmt.Errorf("decrement likes: %w", err)
			}
			liked = false
		} else {
			if err := tx.Create(&models.Like{PostID: postID, UserID: userID}).Error; err != nil {
				// gorm.ErrDuplicatedKey passes through untouched so Toggle can retry.
				return err
			}
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).
				UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
				return fmt.Errorf("increment likes: %w", err)
			}
			liked = true
		}

		if err := tx.Model(&models.Post{}).Select("likes").Where("id = ?", postID).Scan(&likes).Error; err != nil {
			return fmt.Errorf("read likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return liked, likes, nil
}

// Liked reports whether the user currently likes the post.
func (s *LikeService) Liked(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

// Count returns the committed like counter for the post.
func (s *LikeService) Count(ctx context.Context, postID uint) (int64, error) {
	var likes int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("likes").Where("id = ?", postID).First(&likes).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrPostNotFound
	}
	return likes, err
}

// Recount restores the counter invariant by recomputing posts.likes from the
// junction table. It is the recovery procedure for a drifted counter and is
// safe to run concurrently with toggles.
func (s *LikeService) Recount(ctx context.Context, postID uint) (int64, error) {
	var likes int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("load post: %w", err)
		}
		if err := tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&likes).Error; err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes", likes).Error; err != nil {
			return fmt.Errorf("write likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return likes, nil
}

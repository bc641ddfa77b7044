package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"iblog/models"
)

var likeTestDBSeq int

// newLikeTestDB opens a fresh in-memory sqlite database. A single connection
// is shared so concurrent transactions queue instead of failing with
// SQLITE_BUSY; the serialization the like toggle needs comes from the unique
// index either way.
func newLikeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	likeTestDBSeq++
	dsn := fmt.Sprintf("file:liketest%d?mode=memory&cache=shared", likeTestDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Like{}))
	return db
}

func createTestPost(t *testing.T, db *gorm.DB, likes int64) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:    "hello",
		Content:  "content",
		Username: "author",
		Likes:    likes,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

func countLikeRows(t *testing.T, db *gorm.DB, postID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}

func postLikes(t *testing.T, db *gorm.DB, postID uint) int64 {
	t.Helper()
	var post models.Post
	require.NoError(t, db.First(&post, postID).Error)
	return post.Likes
}

func TestToggleRoundTrip(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	post := createTestPost(t, db, 0)
	ctx := context.Background()

	liked, likes, err := svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)
	require.True(t, liked)
	require.EqualValues(t, 1, likes)

	liked, likes, err = svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)
	require.False(t, liked)
	require.EqualValues(t, 0, likes)

	require.EqualValues(t, 0, countLikeRows(t, db, post.ID))
}

func TestToggleLikeUnlikeSequence(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	ctx := context.Background()

	// Post already liked by three other users.
	post := createTestPost(t, db, 0)
	for _, uid := range []uint{1, 2, 3} {
		_, _, err := svc.Toggle(ctx, post.ID, uid)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, postLikes(t, db, post.ID))

	liked, likes, err := svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)
	require.True(t, liked)
	require.EqualValues(t, 4, likes)

	liked, likes, err = svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)
	require.False(t, liked)
	require.EqualValues(t, 3, likes)

	// Other users' likes are untouched.
	require.EqualValues(t, 3, countLikeRows(t, db, post.ID))
}

func TestToggleCounterMatchesRows(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	post := createTestPost(t, db, 0)
	ctx := context.Background()

	for uid := uint(1); uid <= 10; uid++ {
		_, _, err := svc.Toggle(ctx, post.ID, uid)
		require.NoError(t, err)
	}
	// Half of them unlike again.
	for uid := uint(1); uid <= 5; uid++ {
		_, _, err := svc.Toggle(ctx, post.ID, uid)
		require.NoError(t, err)
	}

	require.EqualValues(t, 5, countLikeRows(t, db, post.ID))
	require.EqualValues(t, 5, postLikes(t, db, post.ID))
}

func TestToggleUnauthenticated(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	post := createTestPost(t, db, 0)

	_, _, err := svc.Toggle(context.Background(), post.ID, 0)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// Nothing was written.
	require.EqualValues(t, 0, postLikes(t, db, post.ID))
	require.EqualValues(t, 0, countLikeRows(t, db, post.ID))
}

func TestTogglePostNotFound(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)

	_, _, err := svc.Toggle(context.Background(), 9999, 42)
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestToggleConcurrentSamePair(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	post := createTestPost(t, db, 0)

	const n = 15
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Toggle(context.Background(), post.ID, 42)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "toggle %d", i)
	}

	// An odd number of toggles must land on liked regardless of ordering, and
	// the counter must equal the number of rows.
	rows := countLikeRows(t, db, post.ID)
	require.EqualValues(t, 1, rows)
	require.Equal(t, rows, postLikes(t, db, post.ID))
}

func TestToggleIndependentPairs(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	ctx := context.Background()
	postA := createTestPost(t, db, 0)
	postB := createTestPost(t, db, 0)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, errA = svc.Toggle(ctx, postA.ID, 1)
	}()
	go func() {
		defer wg.Done()
		_, _, errB = svc.Toggle(ctx, postB.ID, 2)
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	require.EqualValues(t, 1, postLikes(t, db, postA.ID))
	require.EqualValues(t, 1, postLikes(t, db, postB.ID))
}

func TestLikedAndCount(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	post := createTestPost(t, db, 0)
	ctx := context.Background()

	liked, err := svc.Liked(ctx, post.ID, 42)
	require.NoError(t, err)
	require.False(t, liked)

	_, _, err = svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)

	liked, err = svc.Liked(ctx, post.ID, 42)
	require.NoError(t, err)
	require.True(t, liked)

	likes, err := svc.Count(ctx, post.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, likes)

	_, err = svc.Count(ctx, 9999)
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestRecountRepairsDrift(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	ctx := context.Background()
	post := createTestPost(t, db, 0)

	for _, uid := range []uint{1, 2, 3} {
		_, _, err := svc.Toggle(ctx, post.ID, uid)
		require.NoError(t, err)
	}

	// Simulate external drift on the denormalized counter.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumn("likes", 99).Error)

	likes, err := svc.Recount(ctx, post.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, likes)
	require.EqualValues(t, 3, postLikes(t, db, post.ID))

	_, err = svc.Recount(ctx, 9999)
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestToggleDecrementGuardsAtZero(t *testing.T) {
	db := newLikeTestDB(t)
	svc := NewLikeService(db)
	ctx := context.Background()
	post := createTestPost(t, db, 0)

	_, _, err := svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)

	// Drift the counter below the row count, then unlike. The guard keeps the
	// counter at zero instead of going negative.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumn("likes", 0).Error)

	liked, likes, err := svc.Toggle(ctx, post.ID, 42)
	require.NoError(t, err)
	require.False(t, liked)
	require.EqualValues(t, 0, likes)
}

package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"iblog/models"
	"iblog/services"
)

func setupLikeRouter(db *gorm.DB, authed bool) *gin.Engine {
	r := gin.New()
	likeController := NewLikeController(services.NewLikeService(db))
	group := r.Group("/api/v1")
	if authed {
		group.Use(fakeAuth(42, "alice"))
	}
	group.POST("/posts/:id/like", likeController.ToggleLike)
	return r
}

type likeResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Success bool  `json:"success"`
		Likes   int64 `json:"likes"`
		Liked   bool  `json:"liked"`
	} `json:"data"`
}

func toggleLike(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, likeResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	r.ServeHTTP(w, req)
	var resp likeResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestToggleLikeEndpoint(t *testing.T) {
	db := newTestDB(t)
	post := &models.Post{Title: "t", Content: "c", Username: "author"}
	require.NoError(t, db.Create(post).Error)

	r := setupLikeRouter(db, true)

	w, resp := toggleLike(t, r, "/api/v1/posts/1/like")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Data.Success)
	require.True(t, resp.Data.Liked)
	require.EqualValues(t, 1, resp.Data.Likes)

	// A second toggle undoes the first.
	w, resp = toggleLike(t, r, "/api/v1/posts/1/like")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Data.Success)
	require.False(t, resp.Data.Liked)
	require.EqualValues(t, 0, resp.Data.Likes)
}

func TestToggleLikeUnauthenticated(t *testing.T) {
	db := newTestDB(t)
	post := &models.Post{Title: "t", Content: "c", Username: "author"}
	require.NoError(t, db.Create(post).Error)

	r := setupLikeRouter(db, false)

	w, _ := toggleLike(t, r, "/api/v1/posts/1/like")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The counter must not move on a rejected request.
	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	require.EqualValues(t, 0, stored.Likes)
}

func TestToggleLikePostNotFound(t *testing.T) {
	db := newTestDB(t)
	r := setupLikeRouter(db, true)

	w, _ := toggleLike(t, r, "/api/v1/posts/999/like")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggleLikeInvalidID(t *testing.T) {
	db := newTestDB(t)
	r := setupLikeRouter(db, true)

	w, _ := toggleLike(t, r, "/api/v1/posts/abc/like")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"iblog/middleware"
	"iblog/models"
	"iblog/services"
	"iblog/utils"
)

// PostController manages CRUD operations for posts.
type PostController struct {
	db    *gorm.DB
	likes *services.LikeService
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, likes *services.LikeService) *PostController {
	return &PostController{db: db, likes: likes}
}

// CreatePost allows authenticated users to create new posts. The author's
// username and avatar are denormalized onto the row so feeds render without a
// join; the album payload is stored verbatim as opaque JSON.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required,min=1"`
		Content string `json:"content" binding:"required"`
		Album   string `json:"album"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	content := utils.Sanitize(req.Content)

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := p.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{
		Title:     title,
		Content:   content,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Album:     req.Album,
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:user:" + user.Username + ":posts")

	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns the full feed ordered by recency or by like count.
func (p *PostController) ListPosts(ctx *gin.Context) {
	sortBy := strings.TrimSpace(ctx.Query("sort"))
	order := "created_at DESC"
	if sortBy == "likes" {
		order = "likes DESC, created_at DESC"
	} else {
		sortBy = "recent"
	}

	cacheKey := "cache:posts:list:sort=" + sortBy
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var posts []models.Post
	if err := p.db.Order(order).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	payload := gin.H{"items": posts, "total": len(posts)}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// GetPost returns a single post by ID. Authenticated viewers additionally get
// their own liked state; those responses are per-user and bypass the cache.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")
	viewerID, authed := getUserID(ctx)

	if !authed {
		if b, ok := utils.CacheGetBytes("cache:post:detail:" + postID); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	payload := gin.H{"post": post}
	if authed {
		if liked, err := p.likes.Liked(ctx.Request.Context(), post.ID, viewerID); err == nil {
			payload["liked"] = liked
		}
		utils.Success(ctx, payload)
		return
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:post:detail:"+postID, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// ListUserPosts returns posts authored by a specific user (public).
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "missing username")
		return
	}

	cacheKey := fmt.Sprintf("cache:user:%s:posts", username)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var posts []models.Post
	if err := p.db.Where("username = ?", username).Order("created_at DESC").Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list user posts")
		return
	}

	payload := gin.H{"items": posts, "total": len(posts)}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// DeletePost removes a post and its like rows. Only the author may delete.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	username, ok := getUsername(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	if post.Username != username {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + postID)
	utils.InvalidateByPrefix("cache:user:" + post.Username + ":posts")

	utils.Success(ctx, gin.H{"message": "post deleted"})
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func getUsername(ctx *gin.Context) (string, bool) {
	value, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return "", false
	}
	name, ok := value.(string)
	return name, ok && name != ""
}

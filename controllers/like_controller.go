package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"iblog/services"
	"iblog/utils"
)

// LikeController exposes the like toggle endpoint.
type LikeController struct {
	likes *services.LikeService
}

// NewLikeController creates a LikeController over the like service.
func NewLikeController(likes *services.LikeService) *LikeController {
	return &LikeController{likes: likes}
}

// ToggleLike flips the caller's like on a post and returns the resulting liked
// state and counter. A repeated call undoes the previous one.
func (l *LikeController) ToggleLike(ctx *gin.Context) {
	postID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	liked, likes, err := l.likes.Toggle(ctx.Request.Context(), uint(postID), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		case errors.Is(err, services.ErrPostNotFound):
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
		default:
			utils.Sugar.Errorf("toggle like post=%d user=%d: %v", postID, userID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to toggle like")
		}
		return
	}

	// Cached feeds and the post detail carry the counter; drop them.
	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + ctx.Param("id"))

	utils.Success(ctx, gin.H{
		"success": true,
		"likes":   likes,
		"liked":   liked,
	})
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"iblog/services"
	"iblog/utils"
)

// AvatarController serves letter avatars rendered on demand.
type AvatarController struct {
	avatars *services.AvatarGenerator
}

// NewAvatarController creates an AvatarController.
func NewAvatarController(avatars *services.AvatarGenerator) *AvatarController {
	return &AvatarController{avatars: avatars}
}

// GetAvatar renders a fresh avatar PNG for the given name. The background is
// random per request; stored avatars live under /static/avatars instead.
func (a *AvatarController) GetAvatar(ctx *gin.Context) {
	name := ctx.Param("username")

	data, err := a.avatars.Generate(name)
	if err != nil {
		if errors.Is(err, services.ErrInvalidName) {
			utils.Error(ctx, http.StatusBadRequest, 40040, "invalid name")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to render avatar")
		return
	}

	ctx.Data(http.StatusOK, "image/png", data)
}

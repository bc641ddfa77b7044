package main

import (
	"iblog/config"
	"iblog/models"
	"iblog/routes"
	"iblog/services"
	"iblog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Like{})

	avatars, err := services.NewAvatarGenerator(cfg.AvatarDir, cfg.AvatarSize)
	if err != nil {
		utils.Sugar.Fatalf("avatar generator init failed: %v", err)
	}

	r := routes.SetupRouter(db, avatars)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

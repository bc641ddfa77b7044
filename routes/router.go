package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"iblog/config"
	"iblog/controllers"
	"iblog/middleware"
	"iblog/services"
	"iblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, avatars *services.AvatarGenerator) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap access logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	likeService := services.NewLikeService(db)

	authController := controllers.NewAuthController(db, avatars)
	postController := controllers.NewPostController(db, likeService)
	likeController := controllers.NewLikeController(likeService)
	avatarController := controllers.NewAvatarController(avatars)

	// On-demand letter avatars (random background each request)
	r.GET("/avatar/:username", avatarController.GetAvatar)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/:id", middleware.OptionalAuth(), postController.GetPost)

	// Public user lookups
	api.GET("/users/:username/posts", postController.ListUserPosts)
	api.GET("/user/by-username/:username", authController.GetUserPublicByUsername)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.POST("/posts", postController.CreatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/like", likeController.ToggleLike)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		ctx.Status(http.StatusNotFound)
	})

	return r
}

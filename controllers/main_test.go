package controllers

import (
	"fmt"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"iblog/config"
	"iblog/middleware"
	"iblog/models"
	"iblog/utils"
)

func TestMain(m *testing.M) {
	// Config is loaded lazily by utils; it refuses to start without a secret.
	os.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)
	if err := utils.InitLogger(config.Get()); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var testDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:ctrltest%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Like{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeAuth injects an authenticated identity the way AuthRequired would.
func fakeAuth(userID uint, username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Set(middleware.ContextUsernameKey, username)
		c.Next()
	}
}

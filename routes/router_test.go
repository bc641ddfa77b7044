package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"iblog/config"
	"iblog/models"
	"iblog/services"
	"iblog/utils"
)

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "routertest")
	if err != nil {
		panic(err)
	}

	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_PATH", filepath.Join(tmp, "gin.log"))
	os.Setenv("AVATAR_DIR", filepath.Join(tmp, "avatars"))

	if err := utils.InitLogger(config.Get()); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routertest?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Like{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM likes")
		db.Exec("DELETE FROM posts")
		db.Exec("DELETE FROM users")
	})

	gen, err := services.NewAvatarGenerator(t.TempDir(), config.Get().AvatarSize)
	require.NoError(t, err)
	return SetupRouter(db, gen), db
}

func doJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t)
	w := doJSON(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPINotFound(t *testing.T) {
	r, _ := newRouter(t)
	w := doJSON(r, http.MethodGet, "/api/v1/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

// Full flow: register, create a post, another user likes and unlikes it.
func TestRegisterPostLikeFlow(t *testing.T) {
	r, db := newRouter(t)

	register := func(name string) string {
		w := doJSON(r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"username": name,
			"password": "secret-1",
		})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data struct {
				Token string `json:"token"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Data.Token)
		return resp.Data.Token
	}

	authorToken := register("author")
	readerToken := register("reader")

	w := doJSON(r, http.MethodPost, "/api/v1/posts", authorToken, gin.H{
		"title":   "a post",
		"content": "body",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var post models.Post
	require.NoError(t, db.First(&post).Error)

	likePath := fmt.Sprintf("/api/v1/posts/%d/like", post.ID)

	// Anonymous like is rejected.
	w = doJSON(r, http.MethodPost, likePath, "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	type likeResp struct {
		Data struct {
			Success bool  `json:"success"`
			Likes   int64 `json:"likes"`
			Liked   bool  `json:"liked"`
		} `json:"data"`
	}

	w = doJSON(r, http.MethodPost, likePath, readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lr likeResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	require.True(t, lr.Data.Success)
	require.True(t, lr.Data.Liked)
	require.EqualValues(t, 1, lr.Data.Likes)

	w = doJSON(r, http.MethodPost, likePath, readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	require.False(t, lr.Data.Liked)
	require.EqualValues(t, 0, lr.Data.Likes)
}

func TestAvatarRoute(t *testing.T) {
	r, _ := newRouter(t)
	w := doJSON(r, http.MethodGet, "/avatar/zoe", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

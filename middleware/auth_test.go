package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"iblog/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.MustGet(ContextUserIDKey),
			"username": c.MustGet(ContextUsernameKey),
		})
	})
	return r
}

func get(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	r := protectedRouter()
	token, err := utils.GenerateToken(42, "alice", time.Hour)
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "alice")
}

func TestAuthRequiredRejectsBadHeaders(t *testing.T) {
	r := protectedRouter()

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not-a-token"} {
		w := get(r, header)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthRequiredRejectsRevokedToken(t *testing.T) {
	r := protectedRouter()
	token, err := utils.GenerateToken(7, "bob", time.Hour)
	require.NoError(t, err)

	utils.BlacklistToken(token, time.Now().Add(time.Hour))
	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

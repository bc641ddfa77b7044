package controllers

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"iblog/services"
)

func setupAvatarRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gen, err := services.NewAvatarGenerator(t.TempDir(), 100)
	require.NoError(t, err)
	r := gin.New()
	r.GET("/avatar/:username", NewAvatarController(gen).GetAvatar)
	return r
}

func TestGetAvatarReturnsPNG(t *testing.T) {
	r := setupAvatarRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/avatar/alice", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())
}

func TestGetAvatarInvalidName(t *testing.T) {
	r := setupAvatarRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/avatar/..", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

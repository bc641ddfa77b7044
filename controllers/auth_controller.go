package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"iblog/config"
	"iblog/models"
	"iblog/services"
	"iblog/utils"
)

// AuthController handles authentication related endpoints including local and third-party providers.
type AuthController struct {
	db      *gorm.DB
	avatars *services.AvatarGenerator
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB, avatars *services.AvatarGenerator) *AuthController {
	return &AuthController{db: db, avatars: avatars}
}

// Register handles local account registration with bcrypt hashing. A letter
// avatar is rendered and stored for the new account; the stored reference is
// written once here and never rewritten for the lifetime of the account.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required,min=2,max=15"`
		Password string `json:"password" binding:"required,min=6,max=18"`
		Confirm  string `json:"confirm"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits and '-'")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	if req.Confirm != "" && req.Password != req.Confirm {
		utils.Error(ctx, http.StatusBadRequest, 40002, "passwords do not match")
		return
	}
	if !validPassword(req.Password) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "password may only contain letters, digits and -_.")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	avatarURL, err := a.avatars.GenerateAndStore(req.Username)
	if err != nil {
		// The account is still usable without a stored avatar; the public
		// avatar route re-renders on demand.
		utils.Sugar.Warnf("avatar generation failed for %s: %v", req.Username, err)
		avatarURL = ""
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: hash,
		AvatarURL:    avatarURL,
	}

	if err := a.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user),
	})
}

// Helpers for validation
func validUsername(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

func validPassword(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(72 * time.Hour)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := ctx.Param("provider")
	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	utils.Success(ctx, gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}

	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	token, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}

	userInfo, err := a.fetchOAuthUser(provider, token)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, err.Error())
		return
	}

	user, err := a.findOrCreateOAuthUser(provider, userInfo)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, user.Username, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{"token": jwtToken, "user": sanitizeUserResponse(*user)})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "not authenticated")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	utils.Success(ctx, sanitizeUserResponse(user))
}

// UpdateProfile allows the authenticated user to update basic profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "not authenticated")
		return
	}

	type request struct {
		Description *string `json:"description"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40009, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	updates := map[string]interface{}{}
	if req.Description != nil {
		desc := utils.Sanitize(strings.TrimSpace(*req.Description))
		if len([]rune(desc)) > 200 {
			utils.Error(ctx, http.StatusBadRequest, 40010, "description too long")
			return
		}
		updates["description"] = desc
	}

	if len(updates) > 0 {
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to update profile")
			return
		}
		utils.InvalidateByPrefix("cache:user:public:uname:" + user.Username)
	}

	utils.Success(ctx, sanitizeUserResponse(user))
}

// GetUserPublicByUsername returns public user info by username.
func (a *AuthController) GetUserPublicByUsername(ctx *gin.Context) {
	uname := strings.TrimSpace(ctx.Param("username"))
	if uname == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "missing username")
		return
	}
	if b, ok := utils.CacheGetBytes("cache:user:public:uname:" + uname); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}
	var user models.User
	if err := a.db.Where("username = ?", uname).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40411, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to get user")
		return
	}
	payload := sanitizeUserResponse(user)
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:user:public:uname:"+uname, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/github/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

func (a *AuthController) fetchOAuthUser(provider string, token *oauth2.Token) (*oauthUser, error) {
	switch strings.ToLower(provider) {
	case "github":
		return fetchGitHubUser(token)
	case "google":
		return fetchGoogleUser(token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (a *AuthController) findOrCreateOAuthUser(provider string, data *oauthUser) (*models.User, error) {
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username := a.ensureUniqueUsername(fallback(data.Username, data.DisplayName), provider, data.ID)
	avatarURL := data.AvatarURL
	if avatarURL == "" {
		// Provider gave no picture; render a letter tile like local signups get.
		if stored, genErr := a.avatars.GenerateAndStore(username); genErr == nil {
			avatarURL = stored
		}
	}

	user = models.User{
		Username:   username,
		Provider:   provider,
		ProviderID: data.ID,
		AvatarURL:  avatarURL,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func fetchGitHubUser(token *oauth2.Token) (*oauthUser, error) {
	req, _ := http.NewRequest("GET", "https://api.github.com/user", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user request failed: %s", resp.Status)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &oauthUser{
		ID:          strconv.FormatInt(payload.ID, 10),
		Username:    payload.Login,
		DisplayName: payload.Name,
		AvatarURL:   payload.AvatarURL,
	}, nil
}

func fetchGoogleUser(token *oauth2.Token) (*oauthUser, error) {
	req, _ := http.NewRequest("GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &oauthUser{
		ID:          payload.ID,
		Username:    localPartOf(payload.Email),
		DisplayName: payload.Name,
		AvatarURL:   payload.Picture,
	}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func localPartOf(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func sanitizeUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var builder strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-")
}

func (a *AuthController) ensureUniqueUsername(base, provider, id string) string {
	base = sanitizeUsername(base)
	if base == "" {
		base = sanitizeUsername(fmt.Sprintf("%s-%s", provider, id))
		if base == "" {
			base = fmt.Sprintf("user-%s", id)
		}
	}

	candidate := base
	suffix := 1
	for {
		var count int64
		if err := a.db.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return candidate
		}
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
		suffix++
	}
}

func sanitizeUserResponse(user models.User) gin.H {
	return gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"provider":    user.Provider,
		"avatar_url":  user.AvatarURL,
		"description": user.Description,
		"created_at":  user.CreatedAt,
	}
}

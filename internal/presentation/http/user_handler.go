package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-match/internal/auth"
	"go-match/internal/models"
	"go-match/internal/store"
)

// UserHandler 账号HTTP处理器
type UserHandler struct {
	Users     store.UserStoreInterface
	JWTSecret string
	TokenTTL  time.Duration
}

// NewUserHandler 创建账号HTTP处理器
func NewUserHandler(users store.UserStoreInterface, jwtSecret string) *UserHandler {
	return &UserHandler{
		Users:     users,
		JWTSecret: jwtSecret,
		TokenTTL:  7 * 24 * time.Hour,
	}
}

// Register 用户注册
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	u := &models.User{
		ID:            uuid.NewString(),
		Username:      req.Username,
		Password:      hashed,
		Nickname:      req.Nickname,
		Email:         req.Email,
		NotifyEnabled: true,
		NotifyOnLike:  true,
		NotifyOnMatch: true,
		CreatedAt:     time.Now(),
	}
	if err := h.Users.CreateUser(c.Request.Context(), u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": u.ID})
}

// Login 用户登录
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.Users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil || u == nil || !auth.VerifyPassword(u.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	token, err := auth.SignJWT(h.JWTSecret, u.ID, h.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "userId": u.ID})
}

// GetProfile 获取用户资料
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.GetString("userID") // 从中间件获取用户ID
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权"})
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil || u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}
	u.Password = ""
	c.JSON(http.StatusOK, u)
}

// UpdateProfile 更新用户资料
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权"})
		return
	}

	var req struct {
		Nickname  string `json:"nickname"`
		AvatarURL string `json:"avatarUrl"`
		Email     string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u := &models.User{ID: userID, Nickname: req.Nickname, AvatarURL: req.AvatarURL, Email: req.Email}
	if err := h.Users.UpdateProfile(c.Request.Context(), u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "更新成功"})
}

// UpdateNotifyPrefs 更新通知偏好
func (h *UserHandler) UpdateNotifyPrefs(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权"})
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
		OnLike  bool `json:"onLike"`
		OnMatch bool `json:"onMatch"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Users.UpdateNotifyPrefs(c.Request.Context(), userID, req.Enabled, req.OnLike, req.OnMatch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "更新成功"})
}

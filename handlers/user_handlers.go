package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ShopAPI/cache"
	"ShopAPI/middleware"
	"ShopAPI/models"
	"ShopAPI/store"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8,max=72"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// RegisterHandler 註冊使用者帳戶
// @Summary register a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body registerRequest true "name, email and password"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /users/register [post]
func (h *Handler) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user := &models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: models.NormalizeEmail(req.Email),
		Role:  models.RoleUser,
	}
	if err := user.SetPassword(req.Password); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, http.StatusBadRequest, "User already exists", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to register user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginHandler 登入帳號，Token同時放在回應內容與 Authorization header
// @Summary log in
// @Tags users
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "email and password"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /users/login [post]
func (h *Handler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.Store.GetUserByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusInternalServerError, "Failed to log in", err)
		return
	}
	//帳號不存在與密碼錯誤回傳相同訊息
	if user == nil || !user.CheckPassword(req.Password) {
		respondError(c, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token, _, err := h.Tokens.GenerateToken(ctx, user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// LogOutHandler 登出，刪除目前的Session
// @Summary log out
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /users/logout [post]
func (h *Handler) LogOutHandler(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		respondError(c, http.StatusUnauthorized, "Not authorized", nil)
		return
	}

	if err := h.Tokens.RevokeToken(c.Request.Context(), claims); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to log out", err)
		return
	}

	c.Header("Authorization", "")
	c.JSON(http.StatusOK, gin.H{
		"message": "Logout successful",
	})
}

// GetUserProfileHandler 查詢使用者資料
// @Summary own profile
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string
// @Router /users/profile [get]
func (h *Handler) GetUserProfileHandler(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondStoreError(c, "User not found", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUserProfileHandler 修改使用者資料
// @Summary update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param profile body updateProfileRequest true "fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /users/profile [put]
func (h *Handler) UpdateUserProfileHandler(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.Store.GetUser(ctx, middleware.CurrentUserID(c))
	if err != nil {
		respondStoreError(c, "User not found", err)
		return
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = models.NormalizeEmail(*req.Email)
	}
	if req.Password != nil {
		if err := user.SetPassword(*req.Password); err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to hash password", err)
			return
		}
	}

	if err := h.Store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, http.StatusBadRequest, "Email already in use", err)
			return
		}
		respondStoreError(c, "Failed to update user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// RequestPasswordResetHandler 寄出重設密碼信，不論信箱是否存在都回傳200
// @Summary request a password reset
// @Tags users
// @Accept json
// @Produce json
// @Param email body resetRequest true "account email"
// @Success 200 {object} map[string]string
// @Router /users/reset-password [post]
func (h *Handler) RequestPasswordResetHandler(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := c.Request.Context()
	logger := h.log(c)

	user, err := h.Store.GetUserByEmail(ctx, models.NormalizeEmail(req.Email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		logger.Info().Msg("password reset requested for unknown email")
	case err != nil:
		logger.Error().Err(err).Msg("無法查詢使用者")
	default:
		token, err := h.Resets.Issue(ctx, user.ID)
		if err != nil {
			logger.Error().Err(err).Str("target_user", user.ID).Msg("無法建立重設密碼Token")
			break
		}
		if err := h.Mailer.SendPasswordReset(ctx, user.Email, token, h.ClientURL); err != nil {
			logger.Error().Err(err).Str("target_user", user.ID).Msg("無法寄出重設密碼信")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset email sent",
	})
}

// ResetPasswordHandler 以一次性Token設定新密碼，並登出所有裝置
// @Summary reset password with a token
// @Tags users
// @Accept json
// @Produce json
// @Param token path string true "reset token"
// @Param password body resetPasswordRequest true "new password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /users/reset-password/{token} [post]
func (h *Handler) ResetPasswordHandler(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := c.Request.Context()

	userID, err := h.Resets.Consume(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			respondError(c, http.StatusBadRequest, "Invalid or expired token", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to verify token", err)
		return
	}

	user, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusBadRequest, "Invalid or expired token", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if err := user.SetPassword(req.Password); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}
	if err := h.Store.UpdateUser(ctx, user); err != nil {
		respondStoreError(c, "Failed to reset password", err)
		return
	}

	if err := h.Tokens.RevokeUser(ctx, user.ID); err != nil {
		h.log(c).Warn().Err(err).Str("target_user", user.ID).Msg("無法登出使用者所有裝置")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset successful",
	})
}

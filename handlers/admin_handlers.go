package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ShopAPI/imagestore"
	"ShopAPI/middleware"
	"ShopAPI/models"
	"ShopAPI/store"
)

type adminUpdateUserRequest struct {
	Name  *string      `json:"name" binding:"omitempty,min=1"`
	Email *string      `json:"email" binding:"omitempty,email"`
	Role  *models.Role `json:"role" binding:"omitempty,oneof=user admin"`
}

// GetUserListHandler 查詢使用者列表
// @Summary list users
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.User
// @Failure 403 {object} map[string]string
// @Router /users [get]
func (h *Handler) GetUserListHandler(c *gin.Context) {
	users, err := h.Store.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUserHandler 修改使用者資料與權限，權限變更時舊Token全部失效
// @Summary update a user
// @Tags users
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "user id"
// @Param user body adminUpdateUserRequest true "fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{id} [put]
func (h *Handler) UpdateUserHandler(c *gin.Context) {
	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.Store.GetUser(ctx, c.Param("id"))
	if err != nil {
		respondStoreError(c, "User not found", err)
		return
	}

	roleChanged := false
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = models.NormalizeEmail(*req.Email)
	}
	if req.Role != nil && *req.Role != user.Role {
		user.Role = *req.Role
		roleChanged = true
	}

	if err := h.Store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, http.StatusBadRequest, "Email already in use", err)
			return
		}
		respondStoreError(c, "Failed to update user", err)
		return
	}

	if roleChanged {
		if err := h.Tokens.RevokeUser(ctx, user.ID); err != nil {
			h.log(c).Warn().Err(err).Str("target_user", user.ID).Msg("無法登出使用者所有裝置")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    user,
	})
}

// DeleteUserHandler 刪除使用者，保留其評論
// @Summary delete a user
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "user id"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{id} [delete]
func (h *Handler) DeleteUserHandler(c *gin.Context) {
	id := c.Param("id")
	if id == middleware.CurrentUserID(c) {
		respondError(c, http.StatusBadRequest, "Cannot delete your own account", nil)
		return
	}
	ctx := c.Request.Context()

	if err := h.Store.DeleteUser(ctx, id); err != nil {
		respondStoreError(c, "User not found", err)
		return
	}
	if err := h.Tokens.RevokeUser(ctx, id); err != nil {
		h.log(c).Warn().Err(err).Str("target_user", id).Msg("無法登出使用者所有裝置")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully",
	})
}

// UploadImageHandler 上傳商品圖片
// @Summary upload a product image
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param image formData file true "jpg, jpeg, png or webp"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /upload [post]
func (h *Handler) UploadImageHandler(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Image file is required", err)
		return
	}

	if !imagestore.IsValidImageExtension(file.Filename) {
		respondError(c, http.StatusBadRequest, "Invalid image type", errors.New("only jpg, jpeg, png and webp images are allowed"))
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read image", err)
		return
	}
	defer src.Close()

	imageName := imagestore.MakeUniqueFileName(file.Filename, h.now())
	imagePath, err := h.Images.Save(c.Request.Context(), imageName, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save image", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Image uploaded successfully",
		"imagePath": imagePath,
	})
}

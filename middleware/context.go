package middleware

import (
	"github.com/gin-gonic/gin"

	"ShopAPI/jwt"
	"ShopAPI/models"
)

// gin.Context 內使用的鍵
const (
	KeyRequestID = "RequestID"
	KeyClaims    = "Claims"
	KeyUserID    = "UserID"
	KeyRole      = "Role"
)

// CurrentUserID 回傳已登入使用者的ID，未登入時為空字串
func CurrentUserID(c *gin.Context) string {
	return c.GetString(KeyUserID)
}

func CurrentRole(c *gin.Context) models.Role {
	role, _ := c.Get(KeyRole)
	r, _ := role.(models.Role)
	return r
}

func IsAdmin(c *gin.Context) bool {
	return CurrentRole(c) == models.RoleAdmin
}

func CurrentClaims(c *gin.Context) *jwt.Claims {
	claims, _ := c.Get(KeyClaims)
	cl, _ := claims.(*jwt.Claims)
	return cl
}

func RequestID(c *gin.Context) string {
	return c.GetString(KeyRequestID)
}

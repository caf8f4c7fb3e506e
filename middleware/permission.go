package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 檢查是否有admin權限，沒有則中止請求
func CheckAdminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Not authorized",
				"error":   "not authorized, no valid token",
			})
			return
		}
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Forbidden",
				"error":   "not authorized as an admin",
			})
			return
		}

		c.Next()
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 檢查是否有登入，沒有則中止請求
func CheckLoginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Not authorized",
				"error":   "not authorized, no valid token",
			})
			return
		}

		c.Next()
	}
}

package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ShopAPI/jwt"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware 有合法Token時寫入使用者資訊，沒有或不合法時照常放行
func AuthMiddleware(tokens TokenVerifier, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if token == "" {
			c.Next()
			return
		}

		//如Token不合法或錯誤則視為未登入
		claims, err := tokens.VerifyToken(c.Request.Context(), token)
		if err != nil {
			logger.Debug().Err(err).Str("request_id", RequestID(c)).Msg("Failed to verify token")
			c.Next()
			return
		}

		c.Header("Authorization", "Bearer "+token)
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyRole, claims.Role)
		c.Next()
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// RedisPinger 讓Redis客戶端可以用於健康檢查
func RedisPinger(rdb *redis.Client) Pinger {
	return redisPinger{rdb: rdb}
}

// LivenessHandler 服務存活
func LivenessHandler(c *gin.Context) {
	c.String(http.StatusOK, "API is running...")
}

// HealthHandler 檢查資料庫與Redis是否可用，掛在 /api 之外所以不列入API文件
func (h *Handler) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"store": "ok", "redis": "ok"}
	status := http.StatusOK
	if err := h.Store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.Redis.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}

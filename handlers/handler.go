package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ShopAPI/cache"
	"ShopAPI/events"
	"ShopAPI/imagestore"
	"ShopAPI/jwt"
	"ShopAPI/mailer"
	"ShopAPI/middleware"
	"ShopAPI/store"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 所有路由共用的依賴
type Handler struct {
	Store     store.Store
	Products  *cache.ProductCache
	Resets    *cache.ResetTokens
	Tokens    *jwt.Manager
	Images    imagestore.Store
	Events    events.Publisher
	Mailer    mailer.Mailer
	Redis     Pinger
	Logger    zerolog.Logger
	ClientURL string
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// log 附帶 request id 與使用者的logger
func (h *Handler) log(c *gin.Context) *zerolog.Logger {
	logger := h.Logger.With().
		Str("request_id", middleware.RequestID(c)).
		Str("user_id", middleware.CurrentUserID(c)).
		Logger()
	return &logger
}

func respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"message": message}
	if err != nil {
		body["error"] = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// storeErrorStatus 將 store 的錯誤轉成 HTTP 狀態碼
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrAlreadyReviewed),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInvalidQuantity),
		errors.Is(err, store.ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondStoreError(c *gin.Context, message string, err error) {
	respondError(c, storeErrorStatus(err), message, err)
}

func (h *Handler) invalidateProducts(c *gin.Context, ids ...string) {
	if err := h.Products.Invalidate(c.Request.Context(), ids...); err != nil {
		h.log(c).Warn().Err(err).Strs("product_ids", ids).Msg("無法清除商品快取")
	}
}

package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultResetTTL = time.Hour

	resetPrefix = "reset"
)

// ResetTokens 重設密碼用的一次性Token
type ResetTokens struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewResetTokens(rdb *redis.Client) *ResetTokens {
	return &ResetTokens{rdb: rdb, ttl: DefaultResetTTL}
}

func (r *ResetTokens) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := r.rdb.Set(ctx, key(resetPrefix, token), userID, r.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume 取出並刪除Token，同一個Token只能使用一次
func (r *ResetTokens) Consume(ctx context.Context, token string) (string, error) {
	userID, err := r.rdb.GetDel(ctx, key(resetPrefix, token)).Result()
	if err != nil {
		return "", missing(err)
	}
	return userID, nil
}

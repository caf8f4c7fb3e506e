package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix     = "session"
	userSessionPrefix = "user_sessions"
)

// Sessions 登入中的Token，以 jti 為鍵，刪除即代表登出
type Sessions struct {
	rdb *redis.Client
}

func NewSessions(rdb *redis.Client) *Sessions {
	return &Sessions{rdb: rdb}
}

func (s *Sessions) Create(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	userKey := key(userSessionPrefix, userID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(sessionPrefix, tokenID), userID, ttl)
		pipe.SAdd(ctx, userKey, tokenID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

// UserID 回傳 Session 所屬的使用者，不存在時回傳 ErrMiss
func (s *Sessions) UserID(ctx context.Context, tokenID string) (string, error) {
	userID, err := s.rdb.Get(ctx, key(sessionPrefix, tokenID)).Result()
	if err != nil {
		return "", missing(err)
	}
	return userID, nil
}

func (s *Sessions) Revoke(ctx context.Context, tokenID, userID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(sessionPrefix, tokenID))
		pipe.SRem(ctx, key(userSessionPrefix, userID), tokenID)
		return nil
	})
	return err
}

// RevokeUser 登出使用者所有裝置
func (s *Sessions) RevokeUser(ctx context.Context, userID string) error {
	userKey := key(userSessionPrefix, userID)
	tokenIDs, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(tokenIDs)+1)
	for _, tokenID := range tokenIDs {
		keys = append(keys, key(sessionPrefix, tokenID))
	}
	keys = append(keys, userKey)
	return s.rdb.Del(ctx, keys...).Err()
}

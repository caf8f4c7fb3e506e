// Package cache keeps the product read-through cache, login sessions and
// password reset tokens in Redis.
package cache

import (
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrMiss 快取中沒有資料
var ErrMiss = errors.New("cache miss")

func key(parts ...string) string {
	return strings.Join(parts, ":")
}

func missing(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	return err
}

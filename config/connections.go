package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ShopAPI/database"
	"ShopAPI/store"
	"ShopAPI/store/memstore"
	"ShopAPI/store/mongostore"
	"ShopAPI/store/sqlstore"
)

// 單次連線嘗試的逾時
const connectTimeout = 10 * time.Second

// SetupStoreConnection 回傳資料庫連線目標，連線成功後將 Store 寫入 dst
func SetupStoreConnection(cfg DatabaseConfig, dst *store.Store) database.Target {
	return database.Target{
		Name: cfg.Driver,
		Connect: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			*dst = s
			return nil
		},
	}
}

func openStore(ctx context.Context, cfg DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case DriverMongo:
		return mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case DriverMySQL, DriverPostgres:
		return sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	case DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// SetupRedisConnection 建立Redis客戶端，連線目標以 PING 確認可用
func SetupRedisConnection(cfg RedisConfig) (*redis.Client, database.Target) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	return redisClient, database.Target{
		Name: "redis",
		Connect: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		},
	}
}

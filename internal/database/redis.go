package database

import (
	"context"
	"fmt"
	"time"

	"campus-ticketing/config"

	"github.com/redis/go-redis/v9"
)

// InitRedis 建立通知 stream、活動快取與冪等鍵共用的 Redis client
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(newRedisOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", rdb.Options().Addr, err)
	}

	return rdb, nil
}

func newRedisOptions(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize, // 0 時由 go-redis 依 CPU 數決定
	}
}

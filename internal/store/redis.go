package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"wearable-sync/internal/config"
)

// NewRedisClient 创建Redis客户端并测试连接
// Ping 失败时关闭客户端并返回错误，调用方无需再 Close
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gavlik-capital/internal/config"
	"gavlik-capital/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisAddr host:port
func RedisAddr(cfg *config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// NewRedisConnection 创建Redis连接，nonce存储和客户端令牌存储共用
func NewRedisConnection(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         RedisAddr(cfg),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Error("NewRedisConnection Error: ", errors.New("failed to connect to redis"), "addr", RedisAddr(cfg), "error: ", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("NewRedisConnection: ", "host: ", cfg.Host, "port: ", cfg.Port, "db: ", cfg.DB)
	return client, nil
}

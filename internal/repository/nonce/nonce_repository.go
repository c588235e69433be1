package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gavlik-capital/pkg/crypto"
	"gavlik-capital/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ErrNonceNotFound nonce不存在、已过期或已被使用
var ErrNonceNotFound = errors.New("nonce not found or expired")

// Repository 一次性nonce存储，每个钱包地址同时只有一个有效nonce
type Repository interface {
	Save(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, walletAddress string) (string, error)
}

type repository struct {
	client *redis.Client
	prefix string
}

func NewRepository(client *redis.Client, prefix string) Repository {
	return &repository{
		client: client,
		prefix: prefix,
	}
}

func (r *repository) key(walletAddress string) string {
	return r.prefix + crypto.NormalizeAddress(walletAddress)
}

// Save 保存nonce，覆盖该地址之前未使用的nonce
func (r *repository) Save(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(walletAddress), nonce, ttl).Err(); err != nil {
		logger.Error("SaveNonce Error: ", err, "wallet_address", walletAddress)
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}

// Consume 原子地读取并删除nonce，保证只能使用一次
func (r *repository) Consume(ctx context.Context, walletAddress string) (string, error) {
	value, err := r.client.GetDel(ctx, r.key(walletAddress)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNonceNotFound
		}
		logger.Error("ConsumeNonce Error: ", err, "wallet_address", walletAddress)
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	return value, nil
}

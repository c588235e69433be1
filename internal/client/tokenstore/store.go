package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gavlik-capital/internal/config"
	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	TokensKey = "gc_wallet_tokens"
	UserKey   = "gc_wallet_user"
)

// Store 令牌与用户数据的双后端存储
// 读优先主存储，cookie备份只用于恢复，两者不要求事务一致
type Store struct {
	primary  Storage
	fallback Storage
}

func NewStore(primary, fallback Storage) *Store {
	return &Store{
		primary:  primary,
		fallback: fallback,
	}
}

// NewFromConfig 按配置组装主存储与cookie备份，primary为redis时需要传入client
func NewFromConfig(cfg config.ClientStorageConfig, client *redis.Client) (*Store, error) {
	var primary Storage
	switch cfg.Primary {
	case "", "memory":
		primary = NewMemoryStorage()
	case "redis":
		if client == nil {
			return nil, errors.New("redis primary storage requires a redis client")
		}
		primary = NewRedisStorage(client, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown primary storage %q", cfg.Primary)
	}

	var fallback Storage
	if cfg.CookieFile != "" {
		fallback = NewCookieStorage(cfg.CookieFile, cfg.CookieMaxAge)
	}
	return NewStore(primary, fallback), nil
}

// StoreTokens 写入主存储后同步到备份，备份失败只记录日志
func (s *Store) StoreTokens(ctx context.Context, tokens *types.WalletAuthTokens) error {
	if tokens == nil || tokens.AccessToken == "" {
		return errors.New("access token is required")
	}
	return s.write(ctx, TokensKey, tokens)
}

// GetStoredTokens 读取令牌，两个后端都不可用时返回nil
func (s *Store) GetStoredTokens(ctx context.Context) *types.WalletAuthTokens {
	return read(ctx, s, TokensKey, func(t *types.WalletAuthTokens) bool { return t.AccessToken != "" })
}

func (s *Store) ClearTokens(ctx context.Context) error {
	return s.clear(ctx, TokensKey)
}

func (s *Store) StoreUserData(ctx context.Context, user *types.User) error {
	if user == nil {
		return errors.New("user is required")
	}
	return s.write(ctx, UserKey, user)
}

// GetStoredUser 读取用户数据，两个后端都不可用时返回nil
func (s *Store) GetStoredUser(ctx context.Context) *types.User {
	return read(ctx, s, UserKey, func(u *types.User) bool { return u.WalletAddress != "" })
}

func (s *Store) ClearUserData(ctx context.Context) error {
	return s.clear(ctx, UserKey)
}

// Clear 清除令牌与用户数据
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(s.ClearTokens(ctx), s.ClearUserData(ctx))
}

func (s *Store) write(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.primary.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	if s.fallback != nil {
		if err := s.fallback.Set(ctx, key, string(data)); err != nil {
			logger.Warn("TokenStore: failed to mirror to fallback", "key", key, "error", err)
		}
	}
	return nil
}

// read 依次尝试主存储和备份，主存储损坏时删除，备份命中时回填主存储
func read[T any](ctx context.Context, s *Store, key string, valid func(*T) bool) *T {
	raw, ok, err := s.primary.Get(ctx, key)
	if err != nil {
		logger.Warn("TokenStore: primary read failed", "key", key, "error", err)
	}
	if ok {
		if v := decode(raw, valid); v != nil {
			return v
		}
		logger.Warn("TokenStore: discarding corrupted primary entry", "key", key)
		if err := s.primary.Remove(ctx, key); err != nil {
			logger.Warn("TokenStore: failed to remove corrupted entry", "key", key, "error", err)
		}
	}

	if s.fallback == nil {
		return nil
	}
	raw, ok, err = s.fallback.Get(ctx, key)
	if err != nil {
		logger.Warn("TokenStore: fallback read failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	v := decode(raw, valid)
	if v == nil {
		logger.Warn("TokenStore: discarding corrupted fallback entry", "key", key)
		_ = s.fallback.Remove(ctx, key)
		return nil
	}

	if err := s.primary.Set(ctx, key, raw); err != nil {
		logger.Warn("TokenStore: failed to restore primary from fallback", "key", key, "error", err)
	}
	return v
}

func decode[T any](raw string, valid func(*T) bool) *T {
	v := new(T)
	if err := json.Unmarshal([]byte(raw), v); err != nil || !valid(v) {
		return nil
	}
	return v
}

// clear 删除两个后端中的数据，不存在时不报错
func (s *Store) clear(ctx context.Context, key string) error {
	var errs []error
	if err := s.primary.Remove(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("clear primary %s: %w", key, err))
	}
	if s.fallback != nil {
		if err := s.fallback.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("clear fallback %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

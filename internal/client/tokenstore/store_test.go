package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gavlik-capital/internal/config"
	"gavlik-capital/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	Storage
}

func (failingStorage) Set(context.Context, string, string) error {
	return errors.New("cookies disabled")
}

func newCookieStore(t *testing.T) (*Store, *MemoryStorage, *CookieStorage) {
	t.Helper()
	primary := NewMemoryStorage()
	fallback := NewCookieStorage(filepath.Join(t.TempDir(), "cookies"), 0)
	return NewStore(primary, fallback), primary, fallback
}

func TestStoreTokensRoundTrip(t *testing.T) {
	store, _, fallback := newCookieStore(t)
	ctx := context.Background()

	tokens := &types.WalletAuthTokens{AccessToken: "t1", RefreshToken: "r1", ExpiresIn: 3600}
	require.NoError(t, store.StoreTokens(ctx, tokens))
	assert.Equal(t, tokens, store.GetStoredTokens(ctx))

	raw, ok, err := fallback.Get(ctx, TokensKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"accessToken":"t1","refreshToken":"r1","expiresIn":3600}`, raw)
}

func TestStoreRecoversCorruptedPrimary(t *testing.T) {
	store, primary, _ := newCookieStore(t)
	ctx := context.Background()

	tokens := &types.WalletAuthTokens{AccessToken: "t1", ExpiresIn: 3600}
	require.NoError(t, store.StoreTokens(ctx, tokens))
	require.NoError(t, primary.Set(ctx, TokensKey, "{not json"))

	assert.Equal(t, tokens, store.GetStoredTokens(ctx))

	healed, ok, err := primary.Get(ctx, TokensKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"accessToken":"t1","expiresIn":3600}`, healed)
}

func TestStoreRecoversMissingPrimary(t *testing.T) {
	store, primary, _ := newCookieStore(t)
	ctx := context.Background()

	user := &types.User{ID: "u1", WalletAddress: "0xabc"}
	require.NoError(t, store.StoreUserData(ctx, user))
	require.NoError(t, primary.Remove(ctx, UserKey))

	got := store.GetStoredUser(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	_, ok, _ := primary.Get(ctx, UserKey)
	assert.True(t, ok)
}

func TestStoreBothCorrupted(t *testing.T) {
	store, primary, fallback := newCookieStore(t)
	ctx := context.Background()

	require.NoError(t, primary.Set(ctx, TokensKey, "garbage"))
	require.NoError(t, fallback.Set(ctx, TokensKey, `{"expiresIn":5}`))

	assert.Nil(t, store.GetStoredTokens(ctx))
	_, ok, _ := primary.Get(ctx, TokensKey)
	assert.False(t, ok)
	_, ok, _ = fallback.Get(ctx, TokensKey)
	assert.False(t, ok)
}

func TestStoreFallbackWriteFailureIsNotPropagated(t *testing.T) {
	primary := NewMemoryStorage()
	store := NewStore(primary, failingStorage{Storage: NewMemoryStorage()})
	ctx := context.Background()

	require.NoError(t, store.StoreTokens(ctx, &types.WalletAuthTokens{AccessToken: "t1"}))
	assert.Equal(t, "t1", store.GetStoredTokens(ctx).AccessToken)
}

func TestStoreClearIsIdempotent(t *testing.T) {
	store, _, _ := newCookieStore(t)
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx))

	require.NoError(t, store.StoreTokens(ctx, &types.WalletAuthTokens{AccessToken: "t1"}))
	require.NoError(t, store.StoreUserData(ctx, &types.User{ID: "u1", WalletAddress: "0xabc"}))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	assert.Nil(t, store.GetStoredTokens(ctx))
	assert.Nil(t, store.GetStoredUser(ctx))
}

func TestStoreRejectsEmptyTokens(t *testing.T) {
	store, _, _ := newCookieStore(t)
	assert.Error(t, store.StoreTokens(context.Background(), &types.WalletAuthTokens{}))
	assert.Error(t, store.StoreUserData(context.Background(), nil))
}

func TestCookieStorageAttributesAndExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jar", "cookies")
	cookies := NewCookieStorage(path, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cookies.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cookies.Set(ctx, TokensKey, `{"accessToken":"a b;c"}`))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, TokensKey+"="))
	assert.Contains(t, line, "Path=/")
	assert.Contains(t, line, "Max-Age=604800")
	assert.Contains(t, line, "SameSite=Lax")
	assert.Contains(t, line, "Expires=Wed, 08 Jan 2025 00:00:00 GMT")

	value, ok, err := cookies.Get(ctx, TokensKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"accessToken":"a b;c"}`, value)

	now = now.Add(8 * 24 * time.Hour)
	_, ok, err = cookies.Get(ctx, TokensKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCookieStorageKeepsOtherKeys(t *testing.T) {
	cookies := NewCookieStorage(filepath.Join(t.TempDir(), "cookies"), time.Hour)
	ctx := context.Background()

	require.NoError(t, cookies.Set(ctx, TokensKey, "one"))
	require.NoError(t, cookies.Set(ctx, UserKey, "two"))
	require.NoError(t, cookies.Set(ctx, TokensKey, "three"))
	require.NoError(t, cookies.Remove(ctx, "missing"))

	v, _, _ := cookies.Get(ctx, TokensKey)
	assert.Equal(t, "three", v)
	v, _, _ = cookies.Get(ctx, UserKey)
	assert.Equal(t, "two", v)

	require.NoError(t, cookies.Remove(ctx, TokensKey))
	_, ok, _ := cookies.Get(ctx, TokensKey)
	assert.False(t, ok)
}

func TestRedisPrimaryWithCookieFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewFromConfig(config.ClientStorageConfig{
		Primary:     "redis",
		RedisPrefix: "walletctl:",
		CookieFile:  filepath.Join(t.TempDir(), "cookies"),
	}, client)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.StoreTokens(ctx, &types.WalletAuthTokens{AccessToken: "t1"}))
	assert.True(t, mr.Exists("walletctl:"+TokensKey))

	mr.FlushAll()
	assert.Equal(t, "t1", store.GetStoredTokens(ctx).AccessToken)
	assert.True(t, mr.Exists("walletctl:"+TokensKey))
}

func TestNewFromConfigErrors(t *testing.T) {
	_, err := NewFromConfig(config.ClientStorageConfig{Primary: "redis"}, nil)
	assert.Error(t, err)
	_, err = NewFromConfig(config.ClientStorageConfig{Primary: "s3"}, nil)
	assert.Error(t, err)

	store, err := NewFromConfig(config.ClientStorageConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, store.fallback)
}

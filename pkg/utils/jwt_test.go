package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour, 24*time.Hour)

	access, refresh, expiresAt, err := m.GenerateTokens("u1", "0xabc")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "0xabc", claims.WalletAddress)
	assert.Equal(t, TokenTypeAccess, claims.Type)

	refreshClaims, err := m.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refreshClaims.Type)
}

func TestJWTManager_RejectsWrongType(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	access, refresh, _, err := m.GenerateTokens("u1", "0xabc")
	require.NoError(t, err)

	_, err = m.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenType)

	_, err = m.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrTokenType)
}

func TestJWTManager_RejectsForeignSecretAndExpiry(t *testing.T) {
	m := NewJWTManager("secret-a", time.Hour, time.Hour)
	other := NewJWTManager("secret-b", time.Hour, time.Hour)

	access, _, _, err := m.GenerateTokens("u1", "0xabc")
	require.NoError(t, err)
	_, err = other.VerifyAccessToken(access)
	assert.Error(t, err)

	expired := NewJWTManager("secret-a", -time.Minute, time.Hour)
	stale, _, _, err := expired.GenerateTokens("u1", "0xabc")
	require.NoError(t, err)
	_, err = m.VerifyAccessToken(stale)
	assert.Error(t, err)
}

func TestGenerateNonce(t *testing.T) {
	a, err := GenerateNonce()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

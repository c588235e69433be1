package utils

import (
	"errors"
	"fmt"
	"time"

	"gavlik-capital/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrTokenType = errors.New("unexpected token type")

// JWTManager JWT管理器
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
}

type claims struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Type          string `json:"type"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(secret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		issuer:        "gavlik-capital",
	}
}

// AccessExpiry 访问令牌有效期
func (m *JWTManager) AccessExpiry() time.Duration {
	return m.accessExpiry
}

// GenerateTokens 生成访问令牌和刷新令牌
func (m *JWTManager) GenerateTokens(userID, walletAddress string) (string, string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.accessExpiry)

	accessToken, err := m.sign(userID, walletAddress, TokenTypeAccess, now, expiresAt)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err := m.sign(userID, walletAddress, TokenTypeRefresh, now, now.Add(m.refreshExpiry))
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return accessToken, refreshToken, expiresAt, nil
}

func (m *JWTManager) sign(userID, walletAddress, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	c := claims{
		UserID:        userID,
		WalletAddress: walletAddress,
		Type:          tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// VerifyAccessToken 验证访问令牌
func (m *JWTManager) VerifyAccessToken(tokenString string) (*types.JWTClaims, error) {
	return m.verify(tokenString, TokenTypeAccess)
}

// VerifyRefreshToken 验证刷新令牌
func (m *JWTManager) VerifyRefreshToken(tokenString string) (*types.JWTClaims, error) {
	return m.verify(tokenString, TokenTypeRefresh)
}

func (m *JWTManager) verify(tokenString, tokenType string) (*types.JWTClaims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, err
	}
	if c.Type != tokenType {
		return nil, fmt.Errorf("%w: %s", ErrTokenType, c.Type)
	}
	return &types.JWTClaims{
		UserID:        c.UserID,
		WalletAddress: c.WalletAddress,
		Type:          c.Type,
	}, nil
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	contextUserIDKey        = "user_id"
	contextWalletAddressKey = "wallet_address"
)

// TokenVerifier 校验访问令牌
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*types.JWTClaims, error)
}

// AuthMiddleware Bearer令牌认证中间件
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "Missing or malformed authorization header")
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			logger.Error("AuthMiddleware Error: ", err, "path", c.FullPath())
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		c.Set(contextUserIDKey, claims.UserID)
		c.Set(contextWalletAddressKey, claims.WalletAddress)
		c.Next()
	}
}

// GetUserFromContext 获取中间件写入的用户ID与钱包地址
func GetUserFromContext(c *gin.Context) (string, string, bool) {
	userID := c.GetString(contextUserIDKey)
	walletAddress := c.GetString(contextWalletAddressKey)
	if userID == "" {
		return "", "", false
	}
	return userID, walletAddress, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{
		Success: false,
		Error: &types.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
}

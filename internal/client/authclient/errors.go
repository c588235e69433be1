package authclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidAddress   = errors.New("wallet address is required")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidResponse  = errors.New("invalid response from auth server")
)

// APIError 服务端返回的非2xx响应，原始响应体不对外暴露
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth request failed with status %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("auth request failed with status %d", e.StatusCode)
}

// IsUnauthorized 令牌或签名被服务端拒绝
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized 判断错误链中是否为401
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}

package auth

import (
	"errors"
	"net/http"

	"gavlik-capital/internal/middleware"
	"gavlik-capital/internal/service/auth"
	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler 钱包认证处理器
type Handler struct {
	authService auth.Service
}

// NewHandler 创建认证处理器
func NewHandler(authService auth.Service) *Handler {
	return &Handler{
		authService: authService,
	}
}

// RegisterRoutes 注册钱包认证路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	walletGroup := router.Group("/auth/wallet")
	{
		// http://localhost:8080/api/v1/auth/wallet/nonce
		walletGroup.POST("/nonce", h.RequestNonce)
		// http://localhost:8080/api/v1/auth/wallet/verify
		walletGroup.POST("/verify", h.Verify)
		// http://localhost:8080/api/v1/auth/wallet/refresh
		walletGroup.POST("/refresh", h.RefreshToken)

		// 需要认证的端点
		// http://localhost:8080/api/v1/auth/wallet/profile
		walletGroup.GET("/profile", middleware.AuthMiddleware(h.authService), h.GetProfile)
		walletGroup.PUT("/profile", middleware.AuthMiddleware(h.authService), h.UpdateProfile)
	}
}

// RequestNonce 获取登录nonce
// @Summary 获取登录nonce
// @Description 为钱包地址签发一次性nonce，同时返回是否为新用户
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body types.NonceRequest true "nonce请求"
// @Success 200 {object} types.APIResponse{data=types.NonceResponse}
// @Failure 400 {object} types.APIResponse
// @Router /api/v1/auth/wallet/nonce [post]
func (h *Handler) RequestNonce(c *gin.Context) {
	var req types.NonceRequest
	if !bindJSON(c, &req, "RequestNonce") {
		return
	}

	response, err := h.authService.RequestNonce(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err, "RequestNonce")
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    response,
	})
}

// Verify 校验钱包签名
// @Summary 校验钱包签名
// @Description 校验签名消息，首次登录自动创建用户，返回用户与令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body types.VerifyRequest true "签名验证请求"
// @Success 200 {object} types.APIResponse{data=types.VerifyResponse}
// @Failure 400 {object} types.APIResponse
// @Failure 401 {object} types.APIResponse
// @Router /api/v1/auth/wallet/verify [post]
func (h *Handler) Verify(c *gin.Context) {
	var req types.VerifyRequest
	if !bindJSON(c, &req, "Verify") {
		return
	}

	response, err := h.authService.Verify(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err, "Verify")
		return
	}
	logger.Info("Verify :", "User: ", response.User.WalletAddress, "is_new_user", response.IsNewUser)
	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    response,
	})
}

// RefreshToken 刷新访问令牌
// @Summary 刷新访问令牌
// @Description 使用刷新令牌获取新的令牌对
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body types.RefreshTokenRequest true "刷新令牌请求"
// @Success 200 {object} types.APIResponse{data=types.VerifyResponse}
// @Failure 400 {object} types.APIResponse
// @Failure 401 {object} types.APIResponse
// @Router /api/v1/auth/wallet/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req types.RefreshTokenRequest
	if !bindJSON(c, &req, "RefreshToken") {
		return
	}

	response, err := h.authService.RefreshToken(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err, "RefreshToken")
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    response,
	})
}

// GetProfile 获取用户资料
// @Summary 获取用户资料
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} types.APIResponse{data=types.ProfileResponse}
// @Failure 401 {object} types.APIResponse
// @Router /api/v1/auth/wallet/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		writeServiceError(c, auth.ErrInvalidToken, "GetProfile")
		return
	}

	u, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "GetProfile")
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    types.ProfileResponse{User: u},
	})
}

// UpdateProfile 更新用户资料
// @Summary 更新用户资料
// @Description 部分更新，返回服务端最新的完整用户数据
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body types.ProfileUpdateRequest true "资料更新请求"
// @Success 200 {object} types.APIResponse{data=types.ProfileResponse}
// @Failure 400 {object} types.APIResponse
// @Failure 401 {object} types.APIResponse
// @Router /api/v1/auth/wallet/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		writeServiceError(c, auth.ErrInvalidToken, "UpdateProfile")
		return
	}

	var req types.ProfileUpdateRequest
	if !bindJSON(c, &req, "UpdateProfile") {
		return
	}
	if req.IsEmpty() {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error: &types.APIError{
				Code:    "INVALID_REQUEST",
				Message: "No profile fields to update",
			},
		})
		return
	}

	u, err := h.authService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err, "UpdateProfile")
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    types.ProfileResponse{User: u},
	})
}

func bindJSON(c *gin.Context, req interface{}, op string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error: &types.APIError{
				Code:    "INVALID_REQUEST",
				Message: "Invalid request parameters",
				Details: err.Error(),
			},
		})
		logger.Error(op+" Error: ", errors.New("invalid request parameters"), "error: ", err)
		return false
	}
	return true
}

// writeServiceError 将服务层错误映射为HTTP状态码与错误码
func writeServiceError(c *gin.Context, err error, op string) {
	statusCode := http.StatusInternalServerError
	errorCode := "INTERNAL_ERROR"
	message := "Internal server error"

	switch {
	case errors.Is(err, auth.ErrInvalidAddress):
		statusCode, errorCode, message = http.StatusBadRequest, "INVALID_WALLET_ADDRESS", err.Error()
	case errors.Is(err, auth.ErrInvalidMessage):
		statusCode, errorCode, message = http.StatusBadRequest, "INVALID_MESSAGE", auth.ErrInvalidMessage.Error()
	case errors.Is(err, auth.ErrInvalidNonce):
		statusCode, errorCode, message = http.StatusUnauthorized, "INVALID_NONCE", err.Error()
	case errors.Is(err, auth.ErrInvalidSignature):
		statusCode, errorCode, message = http.StatusUnauthorized, "INVALID_SIGNATURE", auth.ErrInvalidSignature.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		statusCode, errorCode, message = http.StatusUnauthorized, "INVALID_TOKEN", auth.ErrInvalidToken.Error()
	case errors.Is(err, auth.ErrUserDisabled):
		statusCode, errorCode, message = http.StatusForbidden, "USER_DISABLED", err.Error()
	case errors.Is(err, auth.ErrUserNotFound):
		statusCode, errorCode, message = http.StatusNotFound, "USER_NOT_FOUND", err.Error()
	}

	c.JSON(statusCode, types.APIResponse{
		Success: false,
		Error: &types.APIError{
			Code:    errorCode,
			Message: message,
		},
	})
	logger.Error(op+" Error: ", err, "errorCode: ", errorCode)
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gavlik-capital/internal/config"
	"gavlik-capital/internal/metrics"
	"gavlik-capital/internal/repository/nonce"
	"gavlik-capital/internal/repository/user"
	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/crypto"
	"gavlik-capital/pkg/logger"
	"gavlik-capital/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidNonce     = errors.New("invalid or expired nonce")
	ErrInvalidMessage   = errors.New("invalid login message")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrUserDisabled     = errors.New("user account is disabled")
)

// Service 钱包认证服务接口
type Service interface {
	RequestNonce(ctx context.Context, req *types.NonceRequest) (*types.NonceResponse, error)
	Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error)
	RefreshToken(ctx context.Context, req *types.RefreshTokenRequest) (*types.VerifyResponse, error)
	GetProfile(ctx context.Context, userID string) (*types.User, error)
	UpdateProfile(ctx context.Context, userID string, req *types.ProfileUpdateRequest) (*types.User, error)
	VerifyToken(ctx context.Context, tokenString string) (*types.JWTClaims, error)
}

type service struct {
	userRepo   user.Repository
	nonceRepo  nonce.Repository
	jwtManager *utils.JWTManager
	cfg        config.AuthConfig
	now        func() time.Time
}

func NewService(userRepo user.Repository, nonceRepo nonce.Repository, jwtManager *utils.JWTManager, cfg config.AuthConfig) Service {
	return &service{
		userRepo:   userRepo,
		nonceRepo:  nonceRepo,
		jwtManager: jwtManager,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RequestNonce 为钱包地址签发一次性nonce
func (s *service) RequestNonce(ctx context.Context, req *types.NonceRequest) (*types.NonceResponse, error) {
	if !crypto.ValidateEthereumAddress(req.WalletAddress) {
		logger.Error("RequestNonce Error: ", ErrInvalidAddress, "wallet_address", req.WalletAddress)
		return nil, ErrInvalidAddress
	}
	address := crypto.NormalizeAddress(req.WalletAddress)

	exists, err := s.userRepo.ExistsByWallet(ctx, address)
	if err != nil {
		logger.Error("RequestNonce Error: ", errors.New("database error"), "error: ", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	value, err := utils.GenerateNonce()
	if err != nil {
		logger.Error("RequestNonce Error: ", errors.New("failed to generate nonce"), "error: ", err)
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	if err := s.nonceRepo.Save(ctx, address, value, s.cfg.NonceTTL); err != nil {
		return nil, err
	}

	metrics.RecordNonce(!exists)
	logger.Info("RequestNonce Response:", "wallet_address", address, "is_new_user", !exists)
	return &types.NonceResponse{
		Nonce:     value,
		IsNewUser: !exists,
	}, nil
}

// Verify 校验签名并登录
// 1. 验证钱包地址格式
// 2. 消费nonce（一次性）
// 3. 解析并校验登录消息
// 4. 验证签名
// 5. 查找或创建用户
// 6. 生成JWT令牌
func (s *service) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	start := s.now()
	defer func() {
		metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	}()

	// 1. 验证钱包地址格式
	if !crypto.ValidateEthereumAddress(req.WalletAddress) {
		logger.Error("Verify Error: ", ErrInvalidAddress, "wallet_address", req.WalletAddress)
		metrics.RecordVerify("invalid_address")
		return nil, ErrInvalidAddress
	}
	address := crypto.NormalizeAddress(req.WalletAddress)

	// 2. 消费nonce，无论后续是否成功都不可再次使用
	stored, err := s.nonceRepo.Consume(ctx, address)
	if err != nil {
		if errors.Is(err, nonce.ErrNonceNotFound) {
			logger.Error("Verify Error: ", ErrInvalidNonce, "wallet_address", address)
			metrics.RecordVerify("invalid_nonce")
			return nil, ErrInvalidNonce
		}
		metrics.RecordVerify("error")
		return nil, err
	}
	if stored != req.Nonce {
		logger.Error("Verify Error: ", ErrInvalidNonce, "wallet_address", address, "reason", "nonce mismatch")
		metrics.RecordVerify("invalid_nonce")
		return nil, ErrInvalidNonce
	}

	// 3. 解析并校验登录消息
	if err := s.checkMessage(req.Message, address, req.Nonce); err != nil {
		logger.Error("Verify Error: ", err, "wallet_address", address)
		metrics.RecordVerify("invalid_message")
		return nil, err
	}

	// 4. 验证签名
	if err := crypto.VerifySignature(req.Message, req.Signature, address); err != nil {
		logger.Error("Verify Error: ", ErrInvalidSignature, "wallet_address", address, "error", err)
		metrics.RecordVerify("invalid_signature")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	// 5. 查找或创建用户
	currentUser, isNewUser, err := s.findOrCreateUser(ctx, address)
	if err != nil {
		metrics.RecordVerify("error")
		return nil, err
	}
	if !currentUser.IsActive {
		logger.Error("Verify Error: ", ErrUserDisabled, "user_id", currentUser.ID)
		metrics.RecordVerify("disabled")
		return nil, ErrUserDisabled
	}

	// 6. 生成JWT令牌
	tokens, err := s.issueTokens(currentUser)
	if err != nil {
		logger.Error("Verify Error: ", errors.New("failed to generate jwt tokens"), "error: ", err)
		metrics.RecordVerify("error")
		return nil, fmt.Errorf("failed to generate jwt tokens: %w", err)
	}

	metrics.RecordVerify("success")
	logger.Info("Verify Response:", "User: ", currentUser.WalletAddress, "is_new_user", isNewUser)
	return &types.VerifyResponse{
		User:      currentUser,
		Tokens:    *tokens,
		IsNewUser: isNewUser,
	}, nil
}

// checkMessage 校验消息中的平台、地址、nonce与时间戳
func (s *service) checkMessage(message, address, expectedNonce string) error {
	parsed, err := crypto.ParseLoginMessage(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if parsed.Platform != s.cfg.PlatformName {
		return fmt.Errorf("%w: unexpected platform %q", ErrInvalidMessage, parsed.Platform)
	}
	if crypto.NormalizeAddress(parsed.WalletAddress) != address {
		return fmt.Errorf("%w: wallet address does not match", ErrInvalidMessage)
	}
	if parsed.Nonce != expectedNonce {
		return fmt.Errorf("%w: nonce does not match", ErrInvalidMessage)
	}
	if err := parsed.ValidateTimestamp(s.now(), s.cfg.MessageMaxAge, s.cfg.MessageMaxSkew); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func (s *service) findOrCreateUser(ctx context.Context, address string) (*types.User, bool, error) {
	existingUser, err := s.userRepo.GetUserByWallet(ctx, address)
	if err == nil {
		if err := s.userRepo.UpdateLastLogin(ctx, existingUser.ID); err != nil {
			// 登录时间更新失败不影响认证
			logger.Error("Verify Error: ", errors.New("failed to update last login"), "error: ", err)
		}
		logger.Info("Verify: found existing user", "wallet_address", address, "user_id", existingUser.ID)
		return existingUser, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Verify Error: ", errors.New("database error"), "error: ", err)
		return nil, false, fmt.Errorf("database error: %w", err)
	}

	now := s.now()
	newUser := &types.User{
		ID:            uuid.NewString(),
		WalletAddress: address,
		Role:          types.RoleUser,
		IsActive:      true,
		Settings:      types.DefaultUserSettings(),
		NFTHoldings:   []json.RawMessage{},
		LastLogin:     &now,
	}
	if err := s.userRepo.CreateUser(ctx, newUser); err != nil {
		logger.Error("Verify Error: ", errors.New("failed to create user"), "error: ", err)
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	metrics.UsersCreated.Inc()
	logger.Info("Verify: created new user", "wallet_address", address, "user_id", newUser.ID)
	return newUser, true, nil
}

func (s *service) issueTokens(u *types.User) (*types.WalletAuthTokens, error) {
	accessToken, refreshToken, _, err := s.jwtManager.GenerateTokens(u.ID, u.WalletAddress)
	if err != nil {
		return nil, err
	}
	return &types.WalletAuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.AccessExpiry().Seconds()),
	}, nil
}

// RefreshToken 使用刷新令牌换取新的令牌对
func (s *service) RefreshToken(ctx context.Context, req *types.RefreshTokenRequest) (*types.VerifyResponse, error) {
	claims, err := s.jwtManager.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		logger.Error("RefreshToken Error: ", errors.New("failed to verify refresh token"), "error: ", err)
		metrics.RecordRefresh("invalid_token")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		logger.Error("RefreshToken Error: ", err, "user_id", claims.UserID)
		metrics.RecordRefresh("error")
		return nil, err
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		logger.Error("RefreshToken Error: ", errors.New("failed to generate jwt tokens"), "error: ", err)
		metrics.RecordRefresh("error")
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	metrics.RecordRefresh("success")
	logger.Info("RefreshToken Response:", "User: ", u.WalletAddress)
	return &types.VerifyResponse{
		User:   u,
		Tokens: *tokens,
	}, nil
}

// GetProfile 获取用户资料
func (s *service) GetProfile(ctx context.Context, userID string) (*types.User, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		logger.Error("GetProfile Error: ", err, "user_id", userID)
		return nil, err
	}
	logger.Info("GetProfile :", "User: ", u.WalletAddress)
	return u, nil
}

// UpdateProfile 部分更新用户资料，返回服务端最新数据
func (s *service) UpdateProfile(ctx context.Context, userID string, req *types.ProfileUpdateRequest) (*types.User, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		logger.Error("UpdateProfile Error: ", err, "user_id", userID)
		return nil, err
	}

	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Avatar != nil {
		u.Avatar = *req.Avatar
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Settings != nil {
		u.Settings = *req.Settings
	}

	if err := s.userRepo.UpdateUser(ctx, u); err != nil {
		logger.Error("UpdateProfile Error: ", errors.New("failed to update user"), "error: ", err)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	logger.Info("UpdateProfile Response:", "User: ", u.WalletAddress)
	return u, nil
}

// VerifyToken 验证访问令牌
func (s *service) VerifyToken(ctx context.Context, tokenString string) (*types.JWTClaims, error) {
	claims, err := s.jwtManager.VerifyAccessToken(tokenString)
	if err != nil {
		logger.Error("VerifyToken Error: ", errors.New("failed to verify access token"), "error: ", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := s.activeUser(ctx, claims.UserID); err != nil {
		logger.Error("VerifyToken Error: ", err, "user_id", claims.UserID)
		return nil, err
	}
	return claims, nil
}

func (s *service) activeUser(ctx context.Context, userID string) (*types.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !u.IsActive {
		return nil, ErrUserDisabled
	}
	return u, nil
}

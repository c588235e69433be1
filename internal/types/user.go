package types

import (
	"encoding/json"
	"time"
)

// RoleUser 当前仅支持普通用户角色
const RoleUser = "user"

// User 钱包用户模型，钱包地址（小写）是唯一外部标识
type User struct {
	ID             string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WalletAddress  string            `json:"walletAddress" gorm:"uniqueIndex;size:42;not null"`
	Username       string            `json:"username,omitempty" gorm:"size:64"`
	FirstName      string            `json:"firstName,omitempty" gorm:"size:64"`
	LastName       string            `json:"lastName,omitempty" gorm:"size:64"`
	Avatar         string            `json:"avatar,omitempty" gorm:"size:512"`
	Bio            string            `json:"bio,omitempty" gorm:"type:text"`
	Role           string            `json:"role" gorm:"size:16;default:user"`
	IsActive       bool              `json:"isActive" gorm:"default:true"`
	Settings       UserSettings      `json:"settings" gorm:"serializer:json;type:jsonb"`
	PortfolioValue float64           `json:"portfolioValue"`
	TotalInvested  float64           `json:"totalInvested"`
	TotalRewards   float64           `json:"totalRewards"`
	TotalClaimed   float64           `json:"totalClaimed"`
	NFTHoldings    []json.RawMessage `json:"nftHoldings" gorm:"serializer:json;type:jsonb"` // 不解析，原样透传
	LastLogin      *time.Time        `json:"lastLogin,omitempty"`
	CreatedAt      time.Time         `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// UserSettings 用户偏好设置
type UserSettings struct {
	Notifications NotificationSettings `json:"notifications"`
	Privacy       PrivacySettings      `json:"privacy"`
	Language      string               `json:"language"`
	Currency      string               `json:"currency"`
	Theme         string               `json:"theme"`
}

// NotificationSettings 通知开关
type NotificationSettings struct {
	Email         bool `json:"email"`
	Push          bool `json:"push"`
	PriceAlerts   bool `json:"priceAlerts"`
	RewardUpdates bool `json:"rewardUpdates"`
}

// PrivacySettings 隐私开关
type PrivacySettings struct {
	ShowPortfolio bool `json:"showPortfolio"`
	ShowActivity  bool `json:"showActivity"`
}

// DefaultUserSettings 新用户默认设置
func DefaultUserSettings() UserSettings {
	return UserSettings{
		Notifications: NotificationSettings{
			Email:         true,
			Push:          true,
			PriceAlerts:   true,
			RewardUpdates: true,
		},
		Privacy: PrivacySettings{
			ShowPortfolio: false,
			ShowActivity:  true,
		},
		Language: "en",
		Currency: "USD",
		Theme:    "dark",
	}
}

// WalletAuthTokens 会话凭证
type WalletAuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"` // 秒
}

// NonceRequest 获取nonce请求
type NonceRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

// NonceResponse 获取nonce响应
type NonceResponse struct {
	Nonce     string `json:"nonce"`
	IsNewUser bool   `json:"isNewUser"`
}

// VerifyRequest 签名验证请求，message必须与签名时完全一致
type VerifyRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Message       string `json:"message" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
}

// VerifyResponse 签名验证响应
type VerifyResponse struct {
	User      *User            `json:"user"`
	Tokens    WalletAuthTokens `json:"tokens"`
	IsNewUser bool             `json:"isNewUser"`
}

// ProfileUpdateRequest 资料部分更新，nil字段不修改
type ProfileUpdateRequest struct {
	Username  *string       `json:"username,omitempty" binding:"omitempty,max=64"`
	FirstName *string       `json:"firstName,omitempty" binding:"omitempty,max=64"`
	LastName  *string       `json:"lastName,omitempty" binding:"omitempty,max=64"`
	Avatar    *string       `json:"avatar,omitempty" binding:"omitempty,max=512"`
	Bio       *string       `json:"bio,omitempty"`
	Settings  *UserSettings `json:"settings,omitempty"`
}

// IsEmpty 是否没有任何需要更新的字段
func (r *ProfileUpdateRequest) IsEmpty() bool {
	return r.Username == nil && r.FirstName == nil && r.LastName == nil &&
		r.Avatar == nil && r.Bio == nil && r.Settings == nil
}

// ProfileResponse 用户资料响应
type ProfileResponse struct {
	User *User `json:"user"`
}

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// JWTClaims JWT声明
type JWTClaims struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Type          string `json:"type"` // access or refresh
}

// APIResponse 统一API响应格式
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError API错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

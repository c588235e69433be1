package user

import (
	"context"
	"time"

	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/crypto"
	"gavlik-capital/pkg/logger"

	"gorm.io/gorm"
)

type Repository interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByWallet(ctx context.Context, walletAddress string) (*types.User, error)
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	ExistsByWallet(ctx context.Context, walletAddress string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string) error
	UpdateUser(ctx context.Context, user *types.User) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

// CreateUser 创建新用户
func (r *repository) CreateUser(ctx context.Context, user *types.User) error {
	logger.Info("CreateUser: ", "user_id: ", user.ID, "wallet_address: ", user.WalletAddress)
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUserByWallet 根据钱包地址获取用户，地址入库前已统一小写
func (r *repository) GetUserByWallet(ctx context.Context, walletAddress string) (*types.User, error) {
	var user types.User
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", crypto.NormalizeAddress(walletAddress)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID 根据ID获取用户
func (r *repository) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	var user types.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		logger.Error("GetUserByID Error: ", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// ExistsByWallet 钱包地址是否已注册
func (r *repository) ExistsByWallet(ctx context.Context, walletAddress string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&types.User{}).
		Where("wallet_address = ?", crypto.NormalizeAddress(walletAddress)).
		Count(&count).Error
	if err != nil {
		logger.Error("ExistsByWallet Error: ", err, "wallet_address", walletAddress)
		return false, err
	}
	return count > 0, nil
}

// UpdateLastLogin 更新用户最后登录时间
func (r *repository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", id).
		Update("last_login", &now).Error
}

// UpdateUser 整体保存用户信息
func (r *repository) UpdateUser(ctx context.Context, user *types.User) error {
	logger.Info("UpdateUser: ", "user_id: ", user.ID, "wallet_address: ", user.WalletAddress)
	return r.db.WithContext(ctx).Save(user).Error
}

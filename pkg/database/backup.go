package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gavlik-capital/pkg/crypto"
	"gavlik-capital/pkg/logger"

	"gorm.io/gorm"
)

// BackupVersion 当前备份文件格式版本
const BackupVersion = "1.0.0"

const usersTable = "users"

// BackupManager 用户表备份管理器
type BackupManager struct {
	db *gorm.DB
}

// NewBackupManager 创建备份管理器
func NewBackupManager(db *gorm.DB) *BackupManager {
	return &BackupManager{db: db}
}

// BackupData 备份数据结构
type BackupData struct {
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	UserCount int                      `json:"user_count"`
	Users     []map[string]interface{} `json:"users"`
}

// RestoreOptions 恢复选项
type RestoreOptions struct {
	ClearExisting bool           // 是否清空现有用户
	OnConflict    ConflictAction // 冲突处理策略
}

// ConflictAction 冲突处理策略
type ConflictAction string

const (
	ConflictSkip    ConflictAction = "skip"    // 跳过冲突记录
	ConflictReplace ConflictAction = "replace" // 替换冲突记录
	ConflictError   ConflictAction = "error"   // 遇到冲突报错
)

// ParseConflictAction 解析冲突策略
func ParseConflictAction(s string) (ConflictAction, error) {
	switch action := ConflictAction(s); action {
	case ConflictSkip, ConflictReplace, ConflictError:
		return action, nil
	default:
		return "", fmt.Errorf("unsupported conflict strategy %q", s)
	}
}

// CreateBackup 导出用户表到JSON文件
func (bm *BackupManager) CreateBackup(ctx context.Context, backupPath string) error {
	logger.Info("CreateBackup: ", "path", backupPath)

	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		logger.Error("CreateBackup Error: ", err, "path", backupPath)
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	users, err := bm.backupTable(ctx, usersTable)
	if err != nil {
		return fmt.Errorf("failed to backup users: %w", err)
	}

	backup := BackupData{
		Version:   BackupVersion,
		Timestamp: time.Now().UTC(),
		UserCount: len(users),
		Users:     users,
	}

	file, err := os.Create(backupPath)
	if err != nil {
		logger.Error("CreateBackup Error: ", err, "path", backupPath)
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		logger.Error("CreateBackup Error: ", err, "path", backupPath)
		return fmt.Errorf("failed to encode backup data: %w", err)
	}

	logger.Info("CreateBackup: backup created", "path", backupPath, "users", backup.UserCount)
	return nil
}

// RestoreBackup 从备份文件恢复用户表
func (bm *BackupManager) RestoreBackup(ctx context.Context, backupPath string, options RestoreOptions) error {
	backup, err := readBackup(backupPath)
	if err != nil {
		logger.Error("RestoreBackup Error: ", err, "path", backupPath)
		return err
	}
	if err := validateBackup(backup); err != nil {
		return err
	}

	logger.Info("RestoreBackup: ", "path", backupPath, "version", backup.Version, "users", len(backup.Users))

	return bm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if options.ClearExisting {
			logger.Warn("RestoreBackup: clearing existing users")
			if err := tx.Exec("DELETE FROM " + usersTable).Error; err != nil {
				logger.Error("RestoreBackup Error: ", err, "table", usersTable)
				return fmt.Errorf("failed to clear users: %w", err)
			}
		}

		restored := 0
		for _, record := range backup.Users {
			if err := insertRecord(tx, usersTable, record, options.OnConflict); err != nil {
				if options.OnConflict == ConflictError {
					return fmt.Errorf("failed to insert user %v: %w", record["wallet_address"], err)
				}
				logger.Warn("RestoreBackup: skipped record", "table", usersTable, "wallet_address", record["wallet_address"], "error", err)
				continue
			}
			restored++
		}

		logger.Info("RestoreBackup: restore completed", "restored", restored, "total", len(backup.Users))
		return nil
	})
}

// ValidateBackup 校验备份文件完整性
func (bm *BackupManager) ValidateBackup(backupPath string) error {
	backup, err := readBackup(backupPath)
	if err != nil {
		return err
	}
	return validateBackup(backup)
}

// GetBackupInfo 获取备份文件元信息，不返回用户数据
func (bm *BackupManager) GetBackupInfo(backupPath string) (*BackupData, error) {
	backup, err := readBackup(backupPath)
	if err != nil {
		return nil, err
	}
	if backup.UserCount == 0 {
		backup.UserCount = len(backup.Users)
	}
	backup.Users = nil
	return backup, nil
}

// backupTable 读取整张表，每行转换为列名到值的映射
func (bm *BackupManager) backupTable(ctx context.Context, tableName string) ([]map[string]interface{}, error) {
	rows, err := bm.db.WithContext(ctx).Table(tableName).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}

	records := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row from table %s: %w", tableName, err)
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", tableName, err)
	}
	return records, nil
}

// insertRecord 插入单条记录，列按名称排序
func insertRecord(tx *gorm.DB, tableName string, record map[string]interface{}, onConflict ConflictAction) error {
	columns := make([]string, 0, len(record))
	for col := range record {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	values := make([]interface{}, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		values[i] = record[col]
		placeholders[i] = "?"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	switch onConflict {
	case ConflictSkip:
		sql += " ON CONFLICT DO NOTHING"
	case ConflictReplace:
		var updates []string
		for _, col := range columns {
			if col != "id" {
				updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
			}
		}
		if len(updates) > 0 {
			sql += " ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", ")
		}
	}

	return tx.Exec(sql, values...).Error
}

func readBackup(backupPath string) (*BackupData, error) {
	file, err := os.Open(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	var backup BackupData
	if err := json.NewDecoder(file).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup data: %w", err)
	}
	return &backup, nil
}

// validateBackup 检查版本、时间戳以及每个用户的ID和钱包地址
func validateBackup(backup *BackupData) error {
	if backup.Version == "" {
		return errors.New("backup version is missing")
	}
	if backup.Timestamp.IsZero() {
		return errors.New("backup timestamp is missing")
	}

	seen := make(map[string]bool, len(backup.Users))
	for i, user := range backup.Users {
		if id, _ := user["id"].(string); id == "" {
			return fmt.Errorf("user %d has no id", i)
		}
		addr, _ := user["wallet_address"].(string)
		if !crypto.ValidateEthereumAddress(addr) || addr != crypto.NormalizeAddress(addr) {
			return fmt.Errorf("user %d has invalid wallet address %q", i, addr)
		}
		if seen[addr] {
			return fmt.Errorf("duplicate wallet address %s", addr)
		}
		seen[addr] = true
	}
	return nil
}

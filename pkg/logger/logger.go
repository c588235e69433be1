package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // console 或 json
	Development bool
}

// DefaultConfig 默认日志配置
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
	}
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init 初始化全局日志器
func Init(cfg Config) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	SetLogger(zap.New(core, opts...))
}

// SetLogger 替换全局日志器（测试中用于挂载observer）
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// L 返回当前日志器
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug 调试日志
func Debug(msg string, args ...interface{}) {
	L().Debug(msg, toFields(args)...)
}

// Info 信息日志
func Info(msg string, args ...interface{}) {
	L().Info(msg, toFields(args)...)
}

// Warn 警告日志
func Warn(msg string, args ...interface{}) {
	L().Warn(msg, toFields(args)...)
}

// Error 错误日志，err可以为nil
func Error(msg string, err error, args ...interface{}) {
	fields := toFields(args)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	L().Error(msg, fields...)
}

// Sync 刷新缓冲
func Sync() {
	_ = L().Sync()
}

// toFields 把 key, value, key, value... 转成zap字段
// key末尾的": "会被去掉，奇数个参数时最后一个值记为extra
func toFields(args []interface{}) []zap.Field {
	if len(args) == 0 {
		return nil
	}
	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields = append(fields, zap.Any("extra", args[i]))
			break
		}
		key := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fmt.Sprint(args[i])), ":"))
		if key == "" {
			key = fmt.Sprintf("arg%d", i)
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}

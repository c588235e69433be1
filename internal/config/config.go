package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gavlik-capital/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Client   ClientConfig   `mapstructure:"client"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	AccessExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry"`
}

// AuthConfig 钱包签名登录配置
type AuthConfig struct {
	PlatformName   string        `mapstructure:"platform_name"`
	NonceTTL       time.Duration `mapstructure:"nonce_ttl"`
	NoncePrefix    string        `mapstructure:"nonce_prefix"`
	MessageMaxAge  time.Duration `mapstructure:"message_max_age"`
	MessageMaxSkew time.Duration `mapstructure:"message_max_skew"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClientConfig walletctl 客户端配置
type ClientConfig struct {
	APIBaseURL      string              `mapstructure:"api_base_url"`
	RequestTimeout  time.Duration       `mapstructure:"request_timeout"`
	NonceMaxRetries int                 `mapstructure:"nonce_max_retries"`
	SettleDelay     time.Duration       `mapstructure:"settle_delay"`
	Cooldown        time.Duration       `mapstructure:"cooldown"`
	RedirectDelay   time.Duration       `mapstructure:"redirect_delay"`
	RedirectPath    string              `mapstructure:"redirect_path"`
	Storage         ClientStorageConfig `mapstructure:"storage"`
	Wallet          ClientWalletConfig  `mapstructure:"wallet"`
}

// ClientStorageConfig 令牌存储配置
type ClientStorageConfig struct {
	Primary      string        `mapstructure:"primary"` // memory 或 redis
	RedisPrefix  string        `mapstructure:"redis_prefix"`
	CookieFile   string        `mapstructure:"cookie_file"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
}

// ClientWalletConfig 内置钱包配置
type ClientWalletConfig struct {
	PrivateKey  string `mapstructure:"private_key"`
	ChainID     int64  `mapstructure:"chain_id"`
	AutoApprove bool   `mapstructure:"auto_approve"`
}

// SetDefaults 注册默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gavlik")
	v.SetDefault("database.password", "gavlik")
	v.SetDefault("database.dbname", "gavlik_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "gavlik-jwt-secret-v1")
	v.SetDefault("jwt.access_expiry", time.Hour*24)
	v.SetDefault("jwt.refresh_expiry", time.Hour*24*7)

	// Auth defaults
	v.SetDefault("auth.platform_name", "Gavlik Capital")
	v.SetDefault("auth.nonce_ttl", time.Minute*5)
	v.SetDefault("auth.nonce_prefix", "auth:nonce:")
	v.SetDefault("auth.message_max_age", time.Minute*10)
	v.SetDefault("auth.message_max_skew", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Client defaults
	v.SetDefault("client.api_base_url", "http://localhost:8080/api/v1")
	v.SetDefault("client.request_timeout", time.Second*15)
	v.SetDefault("client.nonce_max_retries", 2)
	v.SetDefault("client.settle_delay", time.Second)
	v.SetDefault("client.cooldown", time.Second*2)
	v.SetDefault("client.redirect_delay", time.Second)
	v.SetDefault("client.redirect_path", "/dashboard")
	v.SetDefault("client.storage.primary", "memory")
	v.SetDefault("client.storage.redis_prefix", "walletctl:")
	v.SetDefault("client.storage.cookie_file", ".walletctl/cookies")
	v.SetDefault("client.storage.cookie_max_age", time.Hour*24*7)
	v.SetDefault("client.wallet.private_key", "")
	v.SetDefault("client.wallet.chain_id", 1)
	v.SetDefault("client.wallet.auto_approve", false)
}

func LoadConfig() (*Config, error) {
	// 本地开发时从 .env 注入环境变量
	for _, file := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.Error("LoadConfig Warning: ", errors.New("failed to load env file"), "file", file, "error: ", err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	SetDefaults(v)

	// Read environment variables, e.g. CLIENT_API_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Error("LoadConfig Error: ", errors.New("failed to read config file"), "error: ", err)
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		logger.Error("LoadConfig Error: ", errors.New("failed to unmarshal config"), "error: ", err)
		return nil, err
	}

	logger.Info("LoadConfig: ", "load config success")
	return &config, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gavlik-capital/internal/client/authclient"
	"gavlik-capital/internal/client/tokenstore"
	"gavlik-capital/internal/config"
	"gavlik-capital/pkg/database"
	"gavlik-capital/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// errReported 错误已经通过提示展示给用户
var errReported = errors.New("reported")

var (
	apiURL  string
	verbose bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "walletctl",
		Short:         "Gavlik Capital wallet sign-in client",
		Long:          "walletctl connects a wallet, signs the Gavlik Capital login challenge and manages the resulting session.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "auth API base URL (overrides client.api_base_url)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newRefreshCmd())

	return rootCmd
}

// session 命令共享的配置、存储与认证客户端
type session struct {
	cfg    *config.Config
	store  *tokenstore.Store
	client *authclient.Client
	redis  *redis.Client
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.Init(logger.Config{Level: level, Format: cfg.Log.Format})

	if apiURL != "" {
		cfg.Client.APIBaseURL = apiURL
	}

	s := &session{cfg: cfg}
	if cfg.Client.Storage.Primary == "redis" {
		if s.redis, err = database.NewRedisConnection(ctx, &cfg.Redis); err != nil {
			return nil, fmt.Errorf("connect token storage: %w", err)
		}
	}
	if s.store, err = tokenstore.NewFromConfig(cfg.Client.Storage, s.redis); err != nil {
		s.Close()
		return nil, err
	}
	s.client = authclient.NewFromConfig(cfg, s.store)
	return s, nil
}

func (s *session) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	logger.Sync()
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}

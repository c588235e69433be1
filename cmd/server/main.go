package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gavlik-capital/docs"
	authHandler "gavlik-capital/internal/api/auth"
	"gavlik-capital/internal/config"
	nonceRepo "gavlik-capital/internal/repository/nonce"
	userRepo "gavlik-capital/internal/repository/user"
	authService "gavlik-capital/internal/service/auth"
	"gavlik-capital/pkg/database"
	"gavlik-capital/pkg/logger"
	"gavlik-capital/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Gavlik Capital Auth API
// @version 1.0
// @description Wallet signature authentication API
// @host localhost:8080
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(logger.DefaultConfig())
	logger.Info("Starting Gavlik Capital auth service")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config: ", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer logger.Sync()

	// 2. 连接数据库并迁移
	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database: ", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("Failed to migrate database: ", err)
		os.Exit(1)
	}

	// 3. 连接Redis（nonce存储）
	redisClient, err := database.NewRedisConnection(context.Background(), &cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis: ", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// 4. 初始化仓库层
	userRepository := userRepo.NewRepository(db)
	nonceRepository := nonceRepo.NewRepository(redisClient, cfg.Auth.NoncePrefix)

	// 5. 初始化JWT管理器
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// 6. 初始化服务层与处理器
	authSvc := authService.NewService(userRepository, nonceRepository, jwtManager, cfg.Auth)
	authHdl := authHandler.NewHandler(authSvc)

	// 7. 设置Gin和路由
	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()

	// CORS
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	authHdl.RegisterRoutes(v1)

	// 8. Swagger API文档端点
	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 9. 启动HTTP服务器
	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server on ", "address", addr)
		logger.Info("Swagger documentation available at: http://localhost:" + cfg.Server.Port + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 10. 等待关闭信号
	select {
	case <-sigCh:
		logger.Info("Received shutdown signal, starting graceful shutdown...")
	case err := <-errCh:
		logger.Error("HTTP server error: ", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: ", err)
	} else {
		logger.Info("HTTP server stopped")
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"workflowhr/internal/api"
	"workflowhr/internal/auth"
	"workflowhr/internal/config"
	"workflowhr/internal/database"
	"workflowhr/internal/render"
	"workflowhr/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("api bootstrapped",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("render_mode", cfg.Render.Mode),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database migrated")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer queue.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	renderer, err := render.New(renderOptions(cfg.Render), logger)
	if err != nil {
		log.Fatalf("init renderer: %v", err)
	}

	authService, err := loadAuthService(cfg.Auth)
	if err != nil {
		log.Fatalf("init auth: %v", err)
	}
	store := auth.NewRedisStore(redisClient)

	deps := api.Dependencies{
		DB:          db,
		Auth:        authService,
		LoginPolicy: auth.NewLoginPolicy(store, cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL),
		Revocations: auth.NewRevocations(store),
		Redis:       redisClient,
		Storage:     storageClient,
		Queue:       queue,
		Renderer:    renderer,
		Scanner:     api.NewClamdScanner(cfg.Clamd.Address),
		Logger:      logger,
		Config:      cfg.API,
	}

	router := api.NewRouter(cfg.API, logger)
	api.RegisterRoutes(router, deps)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}

func loadAuthService(cfg config.AuthConfig) (*auth.AuthService, error) {
	privateKey, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	publicKey, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return auth.NewAuthService(privateKey, publicKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func renderOptions(cfg config.RenderConfig) render.Options {
	return render.Options{
		Mode:        cfg.Mode,
		WidthPx:     cfg.WidthPx,
		Scale:       cfg.Scale,
		Timeout:     cfg.Timeout,
		JPEGQuality: cfg.JPEGQuality,
		BrowserBin:  cfg.BrowserBin,
	}
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"workflowhr/internal/config"
	"workflowhr/internal/database"
	"workflowhr/internal/metrics"
	"workflowhr/internal/render"
	"workflowhr/internal/storage"
	"workflowhr/internal/tasks"
	"workflowhr/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

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

	opts := render.Options{
		Mode:        cfg.Render.Mode,
		WidthPx:     cfg.Render.WidthPx,
		Scale:       cfg.Render.Scale,
		Timeout:     cfg.Render.Timeout,
		JPEGQuality: cfg.Render.JPEGQuality,
		BrowserBin:  cfg.Render.BrowserBin,
	}
	renderer, err := render.New(opts, logger)
	if err != nil {
		log.Fatalf("init renderer: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{"default": 1},
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeDocumentGenerate, worker.NewDocumentTaskHandler(db, storageClient, renderer, redisClient, logger))
	mux.Handle(tasks.TypeTemplateThumbnail, worker.NewThumbnailTaskHandler(db, storageClient, render.NewRodRasterizer(opts, logger), redisClient, logger))

	go serveMetrics(cfg.Worker.MetricsAddr, logger)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}

// serveMetrics 暴露任务与渲染指标，供 Prometheus 抓取。
func serveMetrics(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("worker metrics listening", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("worker metrics server stopped", slog.Any("error", err))
	}
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workflowhr/internal/api/middleware"
	"workflowhr/internal/config"
	"workflowhr/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎：关联 ID、结构化日志、恢复、指标与跨域。
func NewRouter(cfg config.APIConfig, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		gin.Recovery(),
		metrics.GinMiddleware(),
		middleware.CORSMiddleware(cfg.AllowedOrigins),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", middleware.InternalSecretMiddleware(cfg.InternalSecret), gin.WrapH(promhttp.Handler()))

	return router
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"talentflow/internal/api/middleware"
	"talentflow/internal/config"
	"talentflow/internal/metrics"
)

// Pinger 用于健康检查，通常由 *sql.DB 提供。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewRouter 构建 Gin 路由引擎，挂载通用中间件、健康检查与指标端点。
func NewRouter(cfg *config.Config, logger *slog.Logger, db Pinger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
		cors.New(corsConfig(cfg.API.Origins())),
	)

	router.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				middleware.LoggerFromContext(c).Warn("health check failed", slog.Any("error", err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader},
		ExposeHeaders: []string{"X-Total-Count", middleware.CorrelationIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

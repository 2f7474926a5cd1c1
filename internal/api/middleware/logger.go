package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const slogLoggerKey = "slogLogger"

// SlogLoggerMiddleware 将 slog 集成到 Gin，并注入 Correlation ID。
// 5xx 记为 error，4xx 记为 warn；健康检查与指标抓取不记录完成日志。
func SlogLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		requestLogger := logger.With(
			slog.String("correlation_id", GetCorrelationID(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", route),
		)
		c.Set(slogLoggerKey, requestLogger)

		start := time.Now()
		c.Next()

		if route == "/health" || route == "/metrics" {
			return
		}

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
		}
		if member := MemberFromContext(c); member != "" {
			attrs = append(attrs, slog.String("member", member))
		}
		requestLogger.LogAttrs(c.Request.Context(), level, "request completed", attrs...)
	}
}

// LoggerFromContext 返回上下文中的 slog.Logger。
func LoggerFromContext(c *gin.Context) *slog.Logger {
	if value, ok := c.Get(slogLoggerKey); ok {
		if logger, ok := value.(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

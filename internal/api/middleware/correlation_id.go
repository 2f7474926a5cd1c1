package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	correlationIDKey = "correlationID"
	// CorrelationIDHeader 同时用于读取客户端传入的 ID 和回写响应头。
	CorrelationIDHeader = "X-Correlation-ID"

	maxCorrelationIDLen = 64
)

// CorrelationIDMiddleware 确保每个请求都带有 Correlation ID；
// 客户端传入的 ID 过长或含不可打印字符时重新生成。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)

		c.Next()
	}
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetCorrelationID 从上下文中取出 Correlation ID。
func GetCorrelationID(c *gin.Context) string {
	if value, ok := c.Get(correlationIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

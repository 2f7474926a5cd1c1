package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SimulatedLatencyMiddleware 在处理请求前等待 delay() 返回的时长，模拟真实网络延迟。
// 客户端断开时提前结束。
func SimulatedLatencyMiddleware(delay func() time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := delay()
		if d <= 0 {
			c.Next()
			return
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			c.Next()
		case <-c.Request.Context().Done():
			c.AbortWithStatus(http.StatusRequestTimeout)
		}
	}
}

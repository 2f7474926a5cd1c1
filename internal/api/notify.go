package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"talentflow/internal/api/middleware"
	"talentflow/internal/events"
)

// notifier 在写操作成功后发布变更事件；发布失败只记日志，不影响响应。
type notifier struct {
	events events.Publisher
}

func newNotifier(p events.Publisher) notifier {
	if p == nil {
		p = events.Discard{}
	}
	return notifier{events: p}
}

func (n notifier) publish(c *gin.Context, ev events.Event) {
	ev.CorrelationID = middleware.GetCorrelationID(c)
	if err := n.events.Publish(c.Request.Context(), ev); err != nil {
		middleware.LoggerFromContext(c).Warn("publish event failed",
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

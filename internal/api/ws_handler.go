package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"talentflow/internal/events"
)

// EventSubscriber 订阅事件频道，*redis.Client 实现了它。
type EventSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// WsHandler 将 redis 中的看板事件转发给 WebSocket 客户端。
type WsHandler struct {
	subscriber     EventSubscriber
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
	pingInterval   time.Duration
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(subscriber EventSubscriber, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WsHandler{
		subscriber:     subscriber,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		pingInterval:   30 * time.Second,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed || allowed == "*" {
					return true
				}
			}
			return false
		},
	}
	return h
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, errCh, cancel)
	go h.subscribeLoop(ctx, conn, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Info("websocket connection closed", slog.Any("error", err))
		} else {
			log.Info("websocket connection closed")
		}
	}
}

// readLoop 丢弃客户端消息，仅用于检测断开。
func (h *WsHandler) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			writeClose(conn, websocket.CloseNormalClosure, "bye")
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	pubsub := h.subscriber.Subscribe(ctx, events.Channel)
	defer pubsub.Close()

	log.Debug("subscribed to redis channel", slog.String("channel", events.Channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}

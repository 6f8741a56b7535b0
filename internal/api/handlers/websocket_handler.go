package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/pkg/logger"
)

const clientIPLocal = "client_ip"

// MessageLimiter throttles predict messages per client.
type MessageLimiter interface {
	Allow(key string) bool
}

type WebSocketHandler struct {
	predictor inference.Predictor
	limiter   MessageLimiter
}

type wsMessage struct {
	Type     string   `json:"type"`
	Symptoms []string `json:"symptoms"`
}

func NewWebSocketHandler(predictor inference.Predictor, limiter MessageLimiter) *WebSocketHandler {
	return &WebSocketHandler{
		predictor: predictor,
		limiter:   limiter,
	}
}

// Upgrade rejects plain HTTP requests and records the client address for
// per-message limiting.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(clientIPLocal, c.IP())
	return c.Next()
}

// HandleConnection serves predictions over one socket. Each
// {"type":"predict"} message gets a status frame, then a result or an
// error frame. A prediction in flight is cancelled when the peer goes away.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	clientIP, _ := c.Locals(clientIPLocal).(string)
	connLog := logger.With(zap.String("ip", clientIP))
	connLog.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	messages := make(chan wsMessage)
	readerDone := make(chan struct{})

	go h.readLoop(ctx, cancel, c, messages, readerDone)

	defer func() {
		cancel()
		c.Close()
		<-readerDone
		connLog.Info("WebSocket connection closed")
	}()

	for msg := range messages {
		if msg.Type != "predict" {
			h.sendError(c, "unsupported message type")
			continue
		}

		if h.limiter != nil && !h.limiter.Allow(clientIP) {
			connLog.Warn("WebSocket rate limit exceeded")
			h.sendError(c, "Rate limit exceeded. Please try again later.")
			continue
		}

		if err := h.predict(ctx, c, msg.Symptoms); err != nil {
			if ctx.Err() == nil {
				logger.Error("Failed to write WebSocket frame", zap.Error(err))
			}
			return
		}
	}
}

// readLoop owns all reads on c. It cancels ctx when the socket fails so the
// writer side stops work for a peer that is gone.
func (h *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, out chan<- wsMessage, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	defer cancel()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket read ended", zap.Error(err))
			}
			return
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) predict(ctx context.Context, c *websocket.Conn, symptoms []string) error {
	if err := h.send(c, "status", "content", "Running prediction..."); err != nil {
		return err
	}

	result, err := h.predictor.Predict(ctx, symptoms)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("WebSocket prediction cancelled", zap.Error(err))
			return ctx.Err()
		}
		logger.Warn("WebSocket prediction failed", zap.Error(err))
		h.sendError(c, apperrors.PublicMessage(err))
		return nil
	}

	return h.send(c, "result", "result", result)
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, key string, value interface{}) error {
	return c.WriteJSON(map[string]interface{}{
		"type": msgType,
		key:    value,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	_ = h.send(c, "error", "error", errorMsg)
}

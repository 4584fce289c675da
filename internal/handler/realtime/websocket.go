package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/service/conversation"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler 会话的WebSocket处理器
type WebSocketHandler struct {
	conversations *conversation.Service
	logger        *zap.Logger
	upgrader      websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(conversations *conversation.Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		conversations: conversations,
		logger:        logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// SubmitMessage 用户输入
type SubmitMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection serializes writes; gorilla allows one concurrent writer per conn.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	logger    *zap.Logger
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		c.logger.Debug("write failed", zap.String("type", msgType), zap.Error(err))
	}
	return err
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.conversations.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &connection{
		conn:      conn,
		sessionID: sessionID,
		logger:    h.logger.With(zap.String("session_id", sessionID)),
	}
	c.logger.Info("connection opened")

	events, unsubscribe := session.Subscribe(32)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c)
	go h.forwardEvents(ctx, c, events)

	if err := c.send("snapshot", session.Snapshot()); err != nil {
		return
	}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			c.logger.Info("connection closed")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			_ = c.send("error", map[string]string{"message": "session mismatch"})
			continue
		}
		h.handleMessage(c, session, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(c *connection, session *conversation.Session, msg *inboundMessage) {
	switch msg.Type {
	case "submit":
		var payload SubmitMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			_ = c.send("error", map[string]string{"message": "invalid submit payload"})
			return
		}
		accepted := session.Submit(payload.Text)
		_ = c.send("ack", map[string]any{
			"accepted": accepted,
			"state":    session.State(),
		})
	case "ping":
		_ = c.send("pong", nil)
	default:
		_ = c.send("error", map[string]string{"message": "unsupported message type: " + msg.Type})
	}
}

// forwardEvents 将会话事件推送给客户端；会话关闭时结束连接
func (h *WebSocketHandler) forwardEvents(ctx context.Context, c *connection, events <-chan conversation.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				c.closeWith(websocket.CloseGoingAway, "session closed")
				return
			}
			if err := c.send("event", ev); err != nil {
				return
			}
		}
	}
}

func (c *connection) closeWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"accountdesk/backend/internal/middleware"
	"accountdesk/backend/internal/monitoring"
	"accountdesk/backend/internal/service"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
	maxReadBytes = 4096
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeChange MessageType = "change"
	MessageTypePing   MessageType = "ping"
	MessageTypePong   MessageType = "pong"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType          `json:"type"`
	Event     *service.ChangeEvent `json:"event,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID       string
	Operator string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub

	closed    chan struct{}
	closeOnce sync.Once
}

// close 通知 writePump 发送关闭帧并退出，可重复调用
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// enqueue 非阻塞地投递消息，缓冲区满时返回 false
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub 管理所有WebSocket连接，把集合变更推送给已登录的仪表盘
//
// Hub 实现 service.Notifier；客户端收到 change 消息后重新加载对应集合。
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan []byte
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, log *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan []byte, 256),
		done:           make(chan struct{}),
		log:            log,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.log.Info("websocket hub stopped")
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.reportClients(count)
			h.log.Info("client registered",
				zap.String("id", client.ID),
				zap.String("operator", client.Operator))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.reportClients(count)
			h.log.Info("client unregistered", zap.String("id", client.ID))

		case data := <-h.broadcast:
			h.broadcastAll(data)
		}
	}
}

// Notify 实现 service.Notifier，广播队列已满时丢弃事件
func (h *Hub) Notify(event service.ChangeEvent) {
	data, err := json.Marshal(&Message{
		Type:      MessageTypeChange,
		Event:     &event,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error("failed to marshal change event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast queue full, dropping change event",
			zap.String("collection", event.Collection),
			zap.String("op", event.Op))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if !client.enqueue(data) {
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	for _, client := range h.clients {
		client.close()
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
	h.reportClients(0)
}

func (h *Hub) reportClients(n int) {
	if h.metrics != nil {
		h.metrics.SetWebSocketClients(n)
	}
}

// HandleWebSocket 处理WebSocket连接，需挂在会话认证中间件之后
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		operator := ""
		if session, ok := middleware.SessionFromContext(c); ok {
			operator = session.Operator.Username
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:       uuid.NewString(),
			Operator: operator,
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			hub:      hub,
			closed:   make(chan struct{}),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端消息，只处理应用层 ping
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read error", zap.String("clientID", c.ID), zap.Error(err))
			}
			return
		}

		if msg.Type == MessageTypePing {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
			data, _ := json.Marshal(&Message{Type: MessageTypePong, Timestamp: time.Now()})
			c.enqueue(data)
		}
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

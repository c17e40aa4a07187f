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
)

// EventType 定义推送给 UI 的事件类型
type EventType string

const (
	// EventStateChanged 持久化状态发生变化，UI 应当重绘
	EventStateChanged EventType = "state_changed"
	// EventNotification 一条用户可见的通知
	EventNotification EventType = "notification"
)

// Event 推送事件结构
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Client 代表一个已连接的 UI 客户端
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub 管理全部 WebSocket 连接并向它们广播事件。
//
// 渲染回调和通知回调都落到这里：核心组件每次状态变更触发
// 一次 state_changed 广播，由浏览器端拉取最新视图。
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub 创建 WebSocket Hub
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		upgrader: upgraderFactory(allowedOrigins),
		log:      log,
	}
}

// Run 阻塞直到 ctx 取消，然后关闭所有连接。
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

// HandleConnection 把 HTTP 请求升级为 WebSocket 连接
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("websocket client connected", zap.String("client_id", client.id))

	go client.writePump()
	go client.readPump()
}

// BroadcastRender 广播一次重绘事件
func (h *Hub) BroadcastRender() {
	h.broadcast(Event{
		Type:      EventStateChanged,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastNotification 广播一条用户通知
func (h *Hub) BroadcastNotification(message, kind string) {
	h.broadcast(Event{
		Type:      EventNotification,
		Message:   message,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	})
}

// broadcast 把事件发给所有连接；发送缓冲打满的慢客户端被跳过。
func (h *Hub) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal websocket event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// remove 注销一个客户端连接
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// writePump 把待发送的事件写到连接上
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 丢弃入站消息，只用于感知连接断开
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

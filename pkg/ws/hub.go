package ws

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeSubscribed   = "subscribed"   // 订阅确认
	MsgTypeUnsubscribed = "unsubscribed" // 取消订阅确认
	MsgTypeTelemetry    = "telemetry"    // 遥测推送
	MsgTypeError        = "error"        // 错误消息
)

// 客户端发来的动作
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Message WebSocket 消息结构
type Message struct {
	Type       string      `json:"type"`
	VehicleKey string      `json:"vehicle_key,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// Request 客户端请求
type Request struct {
	Type       string `json:"type"`
	VehicleKey string `json:"vehicle_key"`
}

// Client WebSocket 客户端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// 以下字段由 hub.mu 保护
	keys   map[string]struct{}
	closed bool
}

type delivery struct {
	key     string
	message []byte
}

// Hub WebSocket 连接与订阅管理中心
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	broadcast  chan delivery
	unregister chan *Client
	quit       chan struct{}
	mu         sync.RWMutex
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan delivery, 256),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run 运行 Hub，直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected", zap.Int("total_clients", total))

		case d := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if _, ok := client.keys[d.key]; !ok {
					continue
				}
				select {
				case client.send <- d.message:
				default:
					// 慢消费者，关闭连接
					client.close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop 停止 Hub 并关闭全部客户端发送队列
func (h *Hub) Stop() {
	close(h.quit)
}

// BroadcastToSubscribers 只发给订阅了 key 的客户端
func (h *Hub) BroadcastToSubscribers(key, msgType string, data interface{}) {
	key = normalizeKey(key)
	jsonData, err := json.Marshal(Message{Type: msgType, VehicleKey: key, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}
	h.deliver(delivery{key: key, message: jsonData})
}

func (h *Hub) deliver(d delivery) {
	select {
	case h.broadcast <- d:
	case <-h.quit:
	}
}

// Keys 当前至少有一个订阅者的车辆键（已排序）
func (h *Hub) Keys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := make(map[string]struct{})
	for client := range h.clients {
		for k := range client.keys {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe(c *Client, key string) {
	h.mu.Lock()
	c.keys[key] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(c *Client, key string) {
	h.mu.Lock()
	delete(c.keys, key)
	h.mu.Unlock()
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		keys: make(map[string]struct{}),
	}
}

// close 调用方持有 hub.mu 写锁
func (c *Client) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Register 注册客户端，返回后即可收到广播
func (c *Client) Register() {
	h := c.hub
	h.mu.Lock()
	select {
	case <-h.quit:
		c.close()
		h.mu.Unlock()
		return
	default:
	}
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("WebSocket client connected", zap.Int("total_clients", total))
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.quit:
	}
}

// ReadPump 读取订阅请求
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(Message{Type: MsgTypeError, Data: "invalid message"})
		return
	}
	key := normalizeKey(req.VehicleKey)
	if key == "" {
		c.reply(Message{Type: MsgTypeError, Data: "vehicle_key is required"})
		return
	}

	switch req.Type {
	case ActionSubscribe:
		c.hub.subscribe(c, key)
		c.reply(Message{Type: MsgTypeSubscribed, VehicleKey: key})
	case ActionUnsubscribe:
		c.hub.unsubscribe(c, key)
		c.reply(Message{Type: MsgTypeUnsubscribed, VehicleKey: key})
	default:
		c.reply(Message{Type: MsgTypeError, Data: "unknown message type"})
	}
}

// reply 直接回复，发送队列满时丢弃
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("Client buffer full, dropping reply")
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

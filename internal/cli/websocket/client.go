// Package websocket 处理与服务器的 WebSocket 连接，接收界面事件
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// 消息类型常量
const (
	TypeHeartbeat = "heartbeat"
	TypePong      = "pong"
	TypeError     = "error"

	// 服务端 -> 客户端
	TypeResponseStarted = "response.started"
	TypeResponseEnded   = "response.ended"
	TypeMessageUpdated  = "message.updated"
	TypeSessionSwitched = "session.switched"
)

// heartbeatInterval 心跳间隔
const heartbeatInterval = 30 * time.Second

// Message WebSocket 消息结构
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ResponsePayload response.started / response.ended
type ResponsePayload struct {
	SessionID int64 `json:"session_id"`
}

// MessagePayload message.updated，content 是消息的完整当前内容
type MessagePayload struct {
	SessionID int64  `json:"session_id"`
	MessageID int64  `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// SessionPayload session.switched
type SessionPayload struct {
	SessionID   int64    `json:"session_id"`
	Title       string   `json:"title"`
	IncidentIDs []string `json:"incident_ids"`
}

// ErrorPayload error
type ErrorPayload struct {
	Message string `json:"message"`
}

// Decode 把 payload 解析到 v
func (m *Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("消息 %s 没有 payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// Client WebSocket 客户端
type Client struct {
	conn      *websocket.Conn
	url       string
	sendChan  chan []byte
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
	onMessage func(*Message) // 消息回调
	onClose   func()         // 连接关闭回调
}

// NewClient 创建 WebSocket 客户端
// serverURL: HTTP 服务器地址（如 http://localhost:8080）
// token: 访问令牌
func NewClient(serverURL, token string) *Client {
	// 将 HTTP URL 转换为 WebSocket URL
	wsURL := strings.Replace(serverURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = fmt.Sprintf("%s/ws?token=%s", strings.TrimRight(wsURL, "/"), url.QueryEscape(token))

	return &Client{
		url:      wsURL,
		sendChan: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// OnMessage 设置消息回调，在读协程中按到达顺序调用
func (c *Client) OnMessage(handler func(*Message)) {
	c.onMessage = handler
}

// OnClose 设置连接关闭回调
func (c *Client) OnClose(handler func()) {
	c.onClose = handler
}

// Connect 连接到服务器
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("客户端已在运行")
	}
	c.mu.Unlock()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("连接失败 (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("连接失败: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.isRunning = true
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	return nil
}

// Done 连接关闭后关闭
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning {
		return
	}

	c.isRunning = false
	close(c.done)

	if c.conn != nil {
		// 发送关闭帧
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	}

	if c.onClose != nil {
		c.onClose()
	}
}

// readPump 读取消息
func (c *Client) readPump() {
	defer c.Disconnect()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("failed to decode websocket message")
			continue
		}

		if c.onMessage != nil {
			c.onMessage(&msg)
		}
	}
}

// writePump 定时发送心跳
func (c *Client) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.sendChan:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				c.Disconnect()
				return
			}

		case <-ticker.C:
			heartbeat, _ := json.Marshal(&Message{Type: TypeHeartbeat, Timestamp: time.Now().UnixMilli()})
			select {
			case c.sendChan <- heartbeat:
			default:
			}
		}
	}
}

// IsRunning 检查是否正在运行
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

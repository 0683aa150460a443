// Package websocket 提供界面事件的 WebSocket 推送
// 浏览器或 CLI 建立连接后，收到自己的 response.started / message.updated /
// response.ended / session.switched 事件
package websocket

import (
	"time"

	"soc-assistant/internal/model"
	"soc-assistant/pkg/util"
)

// 事件类型
const (
	// 服务端 → 客户端
	TypeResponseStarted = "response.started" // 开始等待 AI 回复（显示加载状态）
	TypeResponseEnded   = "response.ended"   // 回复结束（无论成功、失败或取消）
	TypeMessageUpdated  = "message.updated"  // 消息内容变化，需要重新渲染
	TypeSessionSwitched = "session.switched" // 当前会话已切换

	// 客户端 → 服务端
	TypeHeartbeat = "heartbeat" // 心跳

	// 通用
	TypePong  = "pong"  // 心跳响应
	TypeError = "error" // 错误消息
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`              // 消息类型
	Payload   interface{} `json:"payload,omitempty"` // 消息内容
	Timestamp int64       `json:"timestamp"`         // 时间戳（毫秒）
	MessageID string      `json:"message_id"`        // 消息ID，用于追踪和去重
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		MessageID: util.GenerateUUID(),
	}
}

// ==================== Payload 类型定义 ====================

// ResponsePayload response.started / response.ended
type ResponsePayload struct {
	SessionID int64 `json:"session_id"`
}

// MessagePayload message.updated
// 携带消息的完整当前内容，客户端直接覆盖即可
type MessagePayload struct {
	SessionID int64  `json:"session_id"`
	MessageID int64  `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// NewMessagePayload 从消息记录创建 Payload
func NewMessagePayload(m *model.Message) *MessagePayload {
	return &MessagePayload{
		SessionID: m.SessionID,
		MessageID: m.ID,
		Role:      m.Role,
		Content:   m.Content,
	}
}

// SessionPayload session.switched
type SessionPayload struct {
	SessionID   int64    `json:"session_id"`
	Title       string   `json:"title"`
	IncidentIDs []string `json:"incident_ids"`
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}

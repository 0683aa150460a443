// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser = "user" // 用户消息
	MessageRoleAI   = "ai"   // AI 响应（包括失败时的错误提示）
)

// Message 消息模型
// 对应数据库表 chat_messages
// 用户消息创建后不再修改；AI 消息先以空内容创建，流式响应期间逐片段覆盖内容
type Message struct {
	// ID 消息唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SessionID 所属会话ID，外键关联 chat_sessions.id
	SessionID int64 `gorm:"index;not null" json:"session_id"`

	// Role 消息角色
	// user: 用户发送的消息
	// ai: AI 的响应
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容
	Content string `gorm:"type:text;not null" json:"content"`

	// IsSummarized 是否已被摘要
	IsSummarized bool `gorm:"default:false" json:"is_summarized"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// UpdatedAt 最后一次写入时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "chat_messages"
}

// Kind 实现 TimelineItem
func (m *Message) Kind() string { return TimelineKindMessage }

// Timestamp 实现 TimelineItem
func (m *Message) Timestamp() time.Time { return m.CreatedAt }

func (m *Message) itemID() int64 { return m.ID }

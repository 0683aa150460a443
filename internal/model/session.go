// Package model 定义了与数据库表对应的数据结构
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionTitleLayout 默认会话标题中的时间格式
const SessionTitleLayout = "2006-01-02 15:04:05"

// DefaultSessionTitle 生成默认会话标题，例如 "New Session 2024-05-01 09:30:00"
func DefaultSessionTitle(now time.Time) string {
	return "New Session " + now.Format(SessionTitleLayout)
}

// Session 会话模型
// 对应数据库表 chat_sessions
// 一个用户可以有多个会话，每个会话记录关联到的事件编号
type Session struct {
	// ID 会话唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 所属用户ID，外键关联 users.id
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// Title 会话标题
	Title string `gorm:"size:255;not null" json:"title"`

	// IncidentIDs 会话中出现过的事件编号
	// 去重，按首次出现的顺序追加，不会删除
	IncidentIDs StringList `gorm:"type:text" json:"incident_ids"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Messages 会话中的消息（一对多关系）
	Messages []Message `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`

	// Attachments 会话中的附件（一对多关系）
	Attachments []Attachment `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName 指定表名
func (Session) TableName() string {
	return "chat_sessions"
}

// HasIncident 判断事件编号是否已经记录
func (s *Session) HasIncident(id string) bool {
	for _, existing := range s.IncidentIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// AddIncident 追加事件编号，已存在时返回 false
func (s *Session) AddIncident(id string) bool {
	if id == "" || s.HasIncident(id) {
		return false
	}
	s.IncidentIDs = append(s.IncidentIDs, id)
	return true
}

// StringList 以 JSON 数组形式存储的字符串列表
type StringList []string

// Value 实现 driver.Valuer 接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported StringList source %T", value)
	}

	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

package incident

import (
	"context"
	"time"
)

// TimestampLayout 事件上下文中的时间格式
const TimestampLayout = "2006-01-02 15:04:05"

// Context 事件的结构化上下文，字段顺序即序列化顺序
type Context struct {
	IncidentID   string `json:"incident_id"`
	AlertName    string `json:"alert_name"`
	AffectedUser string `json:"affected_user"`
	Device       string `json:"device"`
	Timestamp    string `json:"timestamp"`
}

// Lookup 根据事件编号查询上下文（SIEM / 工单系统）
// 没有数据时返回 nil, nil
type Lookup interface {
	Lookup(ctx context.Context, incidentID string) (*Context, error)
}

// MockSIEM 返回固定告警数据的 Lookup 实现
type MockSIEM struct {
	now func() time.Time
}

// NewMockSIEM 创建 MockSIEM
func NewMockSIEM() *MockSIEM {
	return &MockSIEM{now: time.Now}
}

// Lookup 实现 Lookup 接口
func (m *MockSIEM) Lookup(_ context.Context, incidentID string) (*Context, error) {
	if incidentID == "" {
		return nil, nil
	}
	return &Context{
		IncidentID:   incidentID,
		AlertName:    "Suspicious Login Attempt",
		AffectedUser: "john.doe@example.com",
		Device:       "DESKTOP-XYZ123",
		Timestamp:    m.now().Format(TimestampLayout),
	}, nil
}

// Package session 维护终端客户端上当前会话的显示状态
// 收到界面事件后更新时间线和加载状态，再由调用方重新渲染
package session

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/websocket"
	"soc-assistant/internal/model"
)

// View 当前会话的显示状态
type View struct {
	mu       sync.RWMutex
	session  *model.Session
	items    []api.TimelineEntry
	messages map[int64]int // 消息ID -> items 下标
	loading  bool
}

// NewView 创建空的显示状态
func NewView() *View {
	return &View{messages: make(map[int64]int)}
}

// Load 用服务端返回的时间线替换当前状态
func (v *View) Load(timeline *api.Timeline) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.session = timeline.Session
	v.items = append([]api.TimelineEntry(nil), timeline.Items...)
	v.messages = make(map[int64]int, len(v.items))
	for i, item := range v.items {
		if item.Message != nil {
			v.messages[item.Message.ID] = i
		}
	}
	v.loading = false
}

// Session 当前会话
func (v *View) Session() *model.Session {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.session
}

// Loading 是否在等待 AI 回复
func (v *View) Loading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

// Apply 处理一条界面事件
// 返回:
//   - bool: 显示内容是否变化（需要重新渲染）
//   - error: payload 解析失败
func (v *View) Apply(msg *websocket.Message) (bool, error) {
	switch msg.Type {
	case websocket.TypeResponseStarted, websocket.TypeResponseEnded:
		var p websocket.ResponsePayload
		if err := msg.Decode(&p); err != nil {
			return false, err
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if !v.current(p.SessionID) {
			return false, nil
		}
		v.loading = msg.Type == websocket.TypeResponseStarted
		return true, nil

	case websocket.TypeMessageUpdated:
		var p websocket.MessagePayload
		if err := msg.Decode(&p); err != nil {
			return false, err
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if !v.current(p.SessionID) {
			return false, nil
		}
		v.upsert(p)
		return true, nil

	case websocket.TypeSessionSwitched:
		var p websocket.SessionPayload
		if err := msg.Decode(&p); err != nil {
			return false, err
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.session != nil && v.session.ID == p.SessionID {
			return false, nil
		}
		// 时间线需要调用方重新拉取
		v.session = &model.Session{ID: p.SessionID, Title: p.Title, IncidentIDs: p.IncidentIDs}
		v.items = nil
		v.messages = make(map[int64]int)
		v.loading = false
		return true, nil
	}
	return false, nil
}

// current 事件是否属于当前会话，调用方持有锁
func (v *View) current(sessionID int64) bool {
	return v.session != nil && v.session.ID == sessionID
}

// upsert 新消息追加到末尾，已有消息整体覆盖内容
func (v *View) upsert(p websocket.MessagePayload) {
	if i, ok := v.messages[p.MessageID]; ok {
		v.items[i].Message.Content = p.Content
		return
	}
	v.messages[p.MessageID] = len(v.items)
	v.items = append(v.items, api.TimelineEntry{Message: &model.Message{
		ID:        p.MessageID,
		SessionID: p.SessionID,
		Role:      p.Role,
		Content:   p.Content,
	}})
}

// Message 按ID获取消息的当前内容
func (v *View) Message(id int64) (model.Message, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.messages[id]
	if !ok {
		return model.Message{}, false
	}
	return *v.items[i].Message, true
}

// Render 输出会话标题和完整时间线
func (v *View) Render(w io.Writer) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.session != nil {
		fmt.Fprintln(w, FormatSession(v.session))
		fmt.Fprintln(w, strings.Repeat("─", 40))
	}
	for _, item := range v.items {
		fmt.Fprintln(w, FormatEntry(item))
	}
	if v.loading {
		fmt.Fprintln(w, "[ai] ...")
	}
}

// FormatSession 会话标题和事件编号，例如 "#3 Phishing triage [INC123456]"
func FormatSession(s *model.Session) string {
	line := fmt.Sprintf("#%d %s", s.ID, s.Title)
	if len(s.IncidentIDs) > 0 {
		line += " [" + strings.Join(s.IncidentIDs, ", ") + "]"
	}
	return line
}

// FormatEntry 时间线条目
// 消息: "[role] 内容"；附件: "[file:type] 文件名 — 摘要"
func FormatEntry(e api.TimelineEntry) string {
	switch {
	case e.Message != nil:
		return fmt.Sprintf("[%s] %s", e.Message.Role, e.Message.Content)
	case e.Attachment != nil:
		return fmt.Sprintf("[file:%s] %s — %s", e.Attachment.FileType, e.Attachment.OriginalName, e.Attachment.Summary)
	}
	return ""
}

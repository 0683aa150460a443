package testutil

import (
	"sync"

	"soc-assistant/internal/model"
)

// Event 记录的一条界面事件
type Event struct {
	Type      string
	UserID    int64
	SessionID int64
	Content   string
}

// EventRecorder 记录所有界面事件的通知器
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// ResponseStarted 记录 response.started
func (r *EventRecorder) ResponseStarted(userID, sessionID int64) {
	r.add(Event{Type: "response.started", UserID: userID, SessionID: sessionID})
}

// ResponseEnded 记录 response.ended
func (r *EventRecorder) ResponseEnded(userID, sessionID int64) {
	r.add(Event{Type: "response.ended", UserID: userID, SessionID: sessionID})
}

// MessageUpdated 记录 message.updated
func (r *EventRecorder) MessageUpdated(userID int64, m *model.Message) {
	r.add(Event{Type: "message.updated", UserID: userID, SessionID: m.SessionID, Content: m.Content})
}

// SessionSwitched 记录 session.switched
func (r *EventRecorder) SessionSwitched(userID int64, s *model.Session) {
	r.add(Event{Type: "session.switched", UserID: userID, SessionID: s.ID})
}

func (r *EventRecorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events 返回已记录事件的副本
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count 统计某类事件的数量
func (r *EventRecorder) Count(eventType string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

package model

import (
	"encoding/json"
	"sort"
	"time"
)

// 时间线条目类型
const (
	TimelineKindMessage    = "message"
	TimelineKindAttachment = "attachment"
)

// TimelineItem 会话时间线中的一条记录，只有 *Message 和 *Attachment 实现它
type TimelineItem interface {
	Kind() string
	Timestamp() time.Time
	itemID() int64
}

// Timeline 按创建时间排好序的消息与附件
type Timeline []TimelineItem

// BuildTimeline 合并消息和附件并按创建时间排序
// 时间相同时消息排在附件前面，同类按 ID 升序
func BuildTimeline(messages []Message, attachments []Attachment) Timeline {
	items := make(Timeline, 0, len(messages)+len(attachments))
	for i := range messages {
		items = append(items, &messages[i])
	}
	for i := range attachments {
		items = append(items, &attachments[i])
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Timestamp().Equal(b.Timestamp()) {
			return a.Timestamp().Before(b.Timestamp())
		}
		if a.Kind() != b.Kind() {
			return a.Kind() == TimelineKindMessage
		}
		return a.itemID() < b.itemID()
	})
	return items
}

// MarshalJSON 每个条目输出为 {"type": ..., "item": ...}
func (t Timeline) MarshalJSON() ([]byte, error) {
	type entry struct {
		Type string       `json:"type"`
		Item TimelineItem `json:"item"`
	}
	out := make([]entry, 0, len(t))
	for _, item := range t {
		out = append(out, entry{Type: item.Kind(), Item: item})
	}
	return json.Marshal(out)
}

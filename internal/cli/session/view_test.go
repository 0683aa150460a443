package session

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/websocket"
	"soc-assistant/internal/model"
)

func event(t *testing.T, eventType string, payload interface{}) *websocket.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &websocket.Message{Type: eventType, Payload: raw}
}

func loadedView() *View {
	v := NewView()
	v.Load(&api.Timeline{
		Session: &model.Session{ID: 3, Title: "Triage", IncidentIDs: model.StringList{"INC123456"}},
		Items: []api.TimelineEntry{
			{Message: &model.Message{ID: 1, SessionID: 3, Role: "user", Content: "Check INC123456"}},
			{Attachment: &model.Attachment{ID: 1, SessionID: 3, FileType: "csv", OriginalName: "iocs.csv", Summary: "Mock summary"}},
		},
	})
	return v
}

func TestViewAppliesStreamEvents(t *testing.T) {
	v := loadedView()

	changed, err := v.Apply(event(t, websocket.TypeResponseStarted, websocket.ResponsePayload{SessionID: 3}))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, v.Loading())

	for _, content := range []string{"", "Hel", "Hello"} {
		changed, err = v.Apply(event(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 3, MessageID: 2, Role: "ai", Content: content}))
		require.NoError(t, err)
		assert.True(t, changed)
	}
	msg, ok := v.Message(2)
	require.True(t, ok)
	assert.Equal(t, "Hello", msg.Content)

	_, err = v.Apply(event(t, websocket.TypeResponseEnded, websocket.ResponsePayload{SessionID: 3}))
	require.NoError(t, err)
	assert.False(t, v.Loading())

	var buf bytes.Buffer
	v.Render(&buf)
	assert.Equal(t, "#3 Triage [INC123456]\n"+
		"────────────────────────────────────────\n"+
		"[user] Check INC123456\n"+
		"[file:csv] iocs.csv — Mock summary\n"+
		"[ai] Hello\n", buf.String())
}

func TestViewIgnoresOtherSessions(t *testing.T) {
	v := loadedView()

	changed, err := v.Apply(event(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 9, MessageID: 5, Role: "ai", Content: "x"}))
	require.NoError(t, err)
	assert.False(t, changed)
	_, ok := v.Message(5)
	assert.False(t, ok)

	changed, _ = v.Apply(event(t, websocket.TypeResponseStarted, websocket.ResponsePayload{SessionID: 9}))
	assert.False(t, changed)
	assert.False(t, v.Loading())

	changed, _ = v.Apply(&websocket.Message{Type: "pong"})
	assert.False(t, changed)
}

func TestViewSessionSwitchResets(t *testing.T) {
	v := loadedView()
	_, _ = v.Apply(event(t, websocket.TypeResponseStarted, websocket.ResponsePayload{SessionID: 3}))

	changed, err := v.Apply(event(t, websocket.TypeSessionSwitched, websocket.SessionPayload{SessionID: 4, Title: "Other"}))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(4), v.Session().ID)
	assert.False(t, v.Loading())

	var buf bytes.Buffer
	v.Render(&buf)
	assert.Equal(t, "#4 Other\n"+"────────────────────────────────────────\n", buf.String())

	_, err = v.Apply(&websocket.Message{Type: websocket.TypeMessageUpdated})
	assert.Error(t, err)
}

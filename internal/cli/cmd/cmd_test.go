package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-assistant/internal/cli/terminal"
	"soc-assistant/internal/cli/websocket"
	"soc-assistant/internal/model"
)

func wsEvent(t *testing.T, eventType string, payload interface{}) *websocket.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &websocket.Message{Type: eventType, Payload: raw, Timestamp: time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local).UnixMilli()}
}

func TestLiveReplyPrintsStreamedContent(t *testing.T) {
	var buf bytes.Buffer
	live := newLiveReply(3, terminal.NewPrinter(&buf))
	live.connected = true

	live.handle(wsEvent(t, websocket.TypeResponseStarted, websocket.ResponsePayload{SessionID: 3}))
	live.handle(wsEvent(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 3, MessageID: 2, Role: "user", Content: "question"}))
	live.handle(wsEvent(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 9, MessageID: 8, Role: "ai", Content: "other"}))
	live.handle(wsEvent(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 3, MessageID: 2, Role: "ai", Content: "Hel"}))
	live.handle(wsEvent(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 3, MessageID: 2, Role: "ai", Content: "Hello"}))
	live.handle(wsEvent(t, websocket.TypeResponseEnded, websocket.ResponsePayload{SessionID: 3}))

	live.finish(context.Background(), &model.Message{Content: "Hello"})
	assert.Equal(t, "… 等待 AI 回复\n[ai] Hello\n", buf.String())
}

func TestLiveReplyFallsBackToFinalReply(t *testing.T) {
	var buf bytes.Buffer
	live := newLiveReply(3, terminal.NewPrinter(&buf))

	live.finish(context.Background(), &model.Message{Content: "Error: Failed to get AI response: Ollama API request failed: 500"})
	assert.Equal(t, "[ai] Error: Failed to get AI response: Ollama API request failed: 500\n", buf.String())
}

func TestFormatEvent(t *testing.T) {
	line := formatEvent(wsEvent(t, websocket.TypeMessageUpdated, websocket.MessagePayload{SessionID: 3, MessageID: 2, Role: "ai", Content: "Hi"}))
	assert.Equal(t, "09:30:00 message.updated  session=3 message=2 [ai] Hi", line)

	line = formatEvent(wsEvent(t, websocket.TypeSessionSwitched, websocket.SessionPayload{SessionID: 4, Title: "Triage"}))
	assert.Equal(t, "09:30:00 session.switched session=4 Triage", line)

	line = formatEvent(wsEvent(t, "pong", map[string]string{}))
	assert.Equal(t, "09:30:00 pong             {}", line)
}

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTimeline(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	messages := []Message{
		{ID: 2, Role: MessageRoleAI, Content: "answer", CreatedAt: base.Add(2 * time.Second)},
		{ID: 1, Role: MessageRoleUser, Content: "question", CreatedAt: base},
	}
	attachments := []Attachment{
		{ID: 7, OriginalName: "iocs.csv", FileType: FileTypeCSV, CreatedAt: base},
		{ID: 8, OriginalName: "bundle.xml", FileType: FileTypeSTIX, CreatedAt: base.Add(time.Second)},
	}

	timeline := BuildTimeline(messages, attachments)
	require.Len(t, timeline, 4)

	var got []string
	for _, item := range timeline {
		switch v := item.(type) {
		case *Message:
			got = append(got, "m:"+v.Content)
		case *Attachment:
			got = append(got, "a:"+v.OriginalName)
		}
	}
	assert.Equal(t, []string{"m:question", "a:iocs.csv", "a:bundle.xml", "m:answer"}, got)
}

func TestTimelineMarshalJSON(t *testing.T) {
	now := time.Now()
	timeline := BuildTimeline(
		[]Message{{ID: 1, Role: MessageRoleUser, Content: "hi", CreatedAt: now}},
		[]Attachment{{ID: 1, OriginalName: "a.pdf", FileType: FileTypePDF, CreatedAt: now.Add(time.Second)}},
	)

	data, err := json.Marshal(timeline)
	require.NoError(t, err)

	var decoded []struct {
		Type string          `json:"type"`
		Item json.RawMessage `json:"item"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, TimelineKindMessage, decoded[0].Type)
	assert.Equal(t, TimelineKindAttachment, decoded[1].Type)
	assert.Contains(t, string(decoded[1].Item), `"file_type":"pdf"`)
}

func TestSessionAddIncident(t *testing.T) {
	s := &Session{}
	assert.True(t, s.AddIncident("INC123456"))
	assert.True(t, s.AddIncident("INC-7654321"))
	assert.False(t, s.AddIncident("INC123456"))
	assert.False(t, s.AddIncident(""))
	assert.Equal(t, StringList{"INC123456", "INC-7654321"}, s.IncidentIDs)
}

func TestStringListValueScan(t *testing.T) {
	var nilList StringList
	v, err := nilList.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringList{"INC000001"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["INC000001"]`, v)

	var scanned StringList
	require.NoError(t, scanned.Scan([]byte(`["INC000001","INC-0000002"]`)))
	assert.Equal(t, StringList{"INC000001", "INC-0000002"}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan(42))
}

func TestDefaultSessionTitle(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "New Session 2024-01-02 03:04:05", DefaultSessionTitle(now))
}

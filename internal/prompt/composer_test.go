package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"soc-assistant/internal/incident"
)

var sample = &incident.Context{
	IncidentID:   "INC123456",
	AlertName:    "Suspicious Login Attempt",
	AffectedUser: "john.doe@example.com",
	Device:       "DESKTOP-XYZ123",
	Timestamp:    "2024-03-09 14:05:06",
}

func TestComposeWithIncident(t *testing.T) {
	got := Compose("Check INC123456", sample, "")

	want := Preamble + "\n" +
		"User message: Check INC123456\n" +
		"Incident Data: " + FormatIncident(sample) + "\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "File Summary:")
}

func TestComposeSectionsAreOptional(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		data    *incident.Context
		summary string
		want    string
	}{
		{"preamble only", "", nil, "", Preamble + "\n"},
		{"text only", "hello", nil, "", Preamble + "\nUser message: hello\n"},
		{"file only", "", nil, "Mock summary", Preamble + "\nFile Summary: Mock summary\n"},
		{
			"all sections in order", "hi", sample, "sum",
			Preamble + "\nUser message: hi\nIncident Data: " + FormatIncident(sample) + "\nFile Summary: sum\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.text, tt.data, tt.summary))
		})
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	assert.Equal(t, Compose("a", sample, "b"), Compose("a", sample, "b"))
}

func TestFormatIncident(t *testing.T) {
	want := strings.Join([]string{
		"{",
		`    "incident_id": "INC123456",`,
		`    "alert_name": "Suspicious Login Attempt",`,
		`    "affected_user": "john.doe@example.com",`,
		`    "device": "DESKTOP-XYZ123",`,
		`    "timestamp": "2024-03-09 14:05:06"`,
		"}",
	}, "\n")
	assert.Equal(t, want, FormatIncident(sample))

	withHTML := &incident.Context{IncidentID: "<INC>&"}
	assert.Contains(t, FormatIncident(withHTML), `"<INC>&"`)
}

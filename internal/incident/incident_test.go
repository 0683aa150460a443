package incident

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"six digits", "Check INC123456 please", "INC123456"},
		{"seven digits with hyphen", "see INC-1234567.", "INC-1234567"},
		{"first match wins", "INC111111 then INC222222", "INC111111"},
		{"at end of text", "escalate INC-000001", "INC-000001"},
		{"too few digits", "INC12345 is short", ""},
		{"too many digits", "INC12345678 is long", ""},
		{"followed by letters", "INC123456abc", ""},
		{"lowercase prefix", "inc123456", ""},
		{"double hyphen", "INC--123456", ""},
		{"embedded after word", "XINC123456", "INC123456"},
		{"no reference", "routine question", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestMockSIEM(t *testing.T) {
	m := NewMockSIEM()
	m.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }

	got, err := m.Lookup(context.Background(), "INC123456")
	require.NoError(t, err)
	assert.Equal(t, &Context{
		IncidentID:   "INC123456",
		AlertName:    "Suspicious Login Attempt",
		AffectedUser: "john.doe@example.com",
		Device:       "DESKTOP-XYZ123",
		Timestamp:    "2024-03-09 14:05:06",
	}, got)

	none, err := m.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

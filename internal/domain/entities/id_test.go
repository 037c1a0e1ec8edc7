package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLegacy(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{"42", RemoteID("42")},
		{"123456789012", RemoteID("123456789012")},
		{"1712345678901", LocalID("1712345678901")},
		{"abc", LocalID("abc")},
		{"", LocalID("")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLegacy(tt.in))
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("remote:7")
	require.NoError(t, err)
	assert.Equal(t, RemoteID("7"), id)

	id, err = ParseID("local:1712345678901")
	require.NoError(t, err)
	assert.Equal(t, LocalID("1712345678901"), id)

	id, err = ParseID("15")
	require.NoError(t, err)
	assert.True(t, id.IsRemote())

	id, err = ParseID("1712345678901")
	require.NoError(t, err)
	assert.Equal(t, LocalID("1712345678901"), id)

	for _, bad := range []string{"", "  ", "remote:", "cloud:1", "nope", "12a"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestIDStringRoundTrip(t *testing.T) {
	id := RemoteID("9")
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Equal(t, "", ID{}.String())
}

func TestIDUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ID
	}{
		{"tagged", `{"origin":"local","value":"1"}`, LocalID("1")},
		{"tagged without origin", `{"value":"5"}`, RemoteID("5")},
		{"number", `12`, RemoteID("12")},
		{"string timestamp", `"1712345678901"`, LocalID("1712345678901")},
		{"null", `null`, ID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestTaskDecodesLegacyRecord(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"title":"UTS","done":true}`), &task))
	assert.Equal(t, RemoteID("3"), task.ID)
	assert.True(t, task.Done)
}

func TestIDGeneratorStrictlyIncreasing(t *testing.T) {
	frozen := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return frozen })

	first := g.Next()
	second := g.Next()
	assert.False(t, first.IsRemote())
	assert.NotEqual(t, first, second)
	assert.Less(t, first.Value, second.Value)
}

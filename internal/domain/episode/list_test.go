package episode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestList_IDs(t *testing.T) {
	tests := []struct {
		name     string
		list     List
		expected []string
	}{
		{
			name:     "empty list",
			list:     List{},
			expected: []string{},
		},
		{
			name:     "multiple episodes",
			list:     List{{ID: "a-semana-js"}, {ID: "faladev-30"}},
			expected: []string{"a-semana-js", "faladev-30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.list.IDs())
		})
	}
}

func TestList_TotalDuration(t *testing.T) {
	l := List{
		{ID: "1", Duration: 30 * time.Minute},
		{ID: "2", Duration: 45 * time.Minute},
	}
	assert.Equal(t, 75*time.Minute, l.TotalDuration())
	assert.Equal(t, time.Duration(0), List{}.TotalDuration())
}

func TestList_IndexOf(t *testing.T) {
	l := List{{ID: "a"}, {ID: "b"}, {ID: "b"}}

	assert.Equal(t, 0, l.IndexOf("a"))
	assert.Equal(t, 1, l.IndexOf("b"), "first match wins")
	assert.Equal(t, -1, l.IndexOf("missing"))
}

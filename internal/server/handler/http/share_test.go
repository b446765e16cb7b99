package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-05-01T12:00:00Z", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{"2026-05-01T14:00:00+02:00", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{"2026-05-01T12:00:00", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{"2026-05-01T12:00", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{"tomorrow", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestPasswordParam(t *testing.T) {
	assert.Nil(t, passwordParam(httptest.NewRequest("GET", "/files/x", nil)))

	pw := passwordParam(httptest.NewRequest("GET", "/files/x?password=", nil))
	require.NotNil(t, pw)
	assert.Empty(t, *pw)

	pw = passwordParam(httptest.NewRequest("GET", "/files/x?password=a%20b", nil))
	require.NotNil(t, pw)
	assert.Equal(t, "a b", *pw)
}

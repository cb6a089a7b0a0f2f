package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeafDevs/qbot/internal/infra/spotify"
)

func TestNewRegistry_InstallsAllCommands(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"link", "unlink", "status", "setchannel", "removechannel", "toptracks"} {
		_, ok := r.commands[name]
		assert.True(t, ok, "command %q missing", name)
		_, ok = r.handlers[name]
		assert.True(t, ok, "handler %q missing", name)
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  spotify.TimeRange
	}{
		{name: "short", value: "short", want: spotify.RangeShort},
		{name: "medium", value: "medium", want: spotify.RangeMedium},
		{name: "long", value: "long", want: spotify.RangeLong},
		{name: "unknown falls back to medium", value: "bogus", want: spotify.RangeMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, label := parseTimeRange(tt.value)
			require.Equal(t, tt.want, got)
			assert.NotEmpty(t, label)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultTopTracksLimit, clampLimit(0))
	assert.Equal(t, defaultTopTracksLimit, clampLimit(-3))
	assert.Equal(t, 25, clampLimit(100))
	assert.Equal(t, 5, clampLimit(5))
}

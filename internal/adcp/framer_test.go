package adcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		frames []string
	}{
		{
			name:   "single CRLF line",
			chunks: []string{"power_status on\r\n"},
			frames: []string{"power_status on"},
		},
		{
			name:   "line split across reads",
			chunks: []string{"power_", "status ", "on\r", "\n"},
			frames: []string{"power_status on"},
		},
		{
			name:   "prompt terminator",
			chunks: []string{"ok\r\n> "},
			frames: []string{"ok\r\n>"},
		},
		{
			name:   "bare CR is not a terminator",
			chunks: []string{"ok\r", "more\r\n"},
			frames: []string{"ok\rmore"},
		},
		{
			name:   "blank line is an empty frame",
			chunks: []string{"\r\n", "ok\r\n"},
			frames: []string{"", "ok"},
		},
		{
			name:   "consecutive frames",
			chunks: []string{"ok\r\n", "err_cmd\r\n"},
			frames: []string{"ok", "err_cmd"},
		},
		{
			name:   "no terminator yet",
			chunks: []string{"power_status on"},
			frames: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer()
			var got []string
			for _, chunk := range tt.chunks {
				frame, ok, err := f.Feed([]byte(chunk))
				require.NoError(t, err)
				if ok {
					got = append(got, frame)
				}
			}
			assert.Equal(t, tt.frames, got)
		})
	}
}

func TestFramerClearsBufferOnFrame(t *testing.T) {
	f := NewFramer()

	_, ok, err := f.Feed([]byte("partial"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, len("partial"), f.Pending())

	frame, ok, err := f.Feed([]byte(" line\r\n"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "partial line", frame)
	assert.Zero(t, f.Pending())
}

func TestFramerOverflow(t *testing.T) {
	f := NewFramer()

	_, ok, err := f.Feed([]byte(strings.Repeat("x", MaxFrameSize+1)))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, f.Pending())
}

func TestFramerReset(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte("stale"))
	f.Reset()

	frame, ok, err := f.Feed([]byte("fresh\r\n"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fresh", frame)
}

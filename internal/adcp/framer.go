// internal/adcp/framer.go
package adcp

import (
	"strings"
)

const (
	// LineTerminator ends every command and most responses
	LineTerminator = "\r\n"
	// PromptMarker ends interactive prompts
	PromptMarker = "> "
	// MaxFrameSize bounds the response buffer
	MaxFrameSize = 64 * 1024
)

// Framer accumulates socket reads and yields complete response frames.
// It is not safe for concurrent use; the client serializes access.
type Framer struct {
	buf         strings.Builder
	terminators []string
	maxSize     int
}

// NewFramer creates a framer recognizing the CRLF and prompt terminators
func NewFramer() *Framer {
	return &Framer{
		terminators: []string{LineTerminator, PromptMarker},
		maxSize:     MaxFrameSize,
	}
}

// Feed appends chunk to the buffer. When the buffer ends with a terminator
// the trimmed content is returned as a frame and the buffer is cleared.
// A bare terminator yields an empty frame; it answers the command in flight.
func (f *Framer) Feed(chunk []byte) (string, bool, error) {
	f.buf.Write(chunk)

	if f.buf.Len() > f.maxSize {
		f.Reset()
		return "", false, ErrFrameTooLarge
	}

	raw := f.buf.String()
	if !f.complete(raw) {
		return "", false, nil
	}

	f.Reset()
	return strings.TrimSpace(raw), true, nil
}

// Pending returns the number of buffered bytes not yet emitted
func (f *Framer) Pending() int {
	return f.buf.Len()
}

// Reset discards any buffered partial frame
func (f *Framer) Reset() {
	f.buf.Reset()
}

func (f *Framer) complete(raw string) bool {
	for _, t := range f.terminators {
		if strings.HasSuffix(raw, t) {
			return true
		}
	}
	return false
}

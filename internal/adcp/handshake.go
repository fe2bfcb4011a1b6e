// internal/adcp/handshake.go
package adcp

import (
	"strings"
)

// Markers are the banner substrings the login exchange is matched against.
// They depend on the projector firmware.
type Markers struct {
	PasswordPrompt string `mapstructure:"password_prompt"`
	Success        string `mapstructure:"success"`
	Failure        string `mapstructure:"failure"`
	Prompt         string `mapstructure:"prompt"`
}

// DefaultMarkers returns the markers observed on Sony VPL firmware
func DefaultMarkers() Markers {
	return Markers{
		PasswordPrompt: "Password:",
		Success:        "Login successful",
		Failure:        "Login incorrect",
		Prompt:         PromptMarker,
	}
}

func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.PasswordPrompt == "" {
		m.PasswordPrompt = d.PasswordPrompt
	}
	if m.Success == "" {
		m.Success = d.Success
	}
	if m.Failure == "" {
		m.Failure = d.Failure
	}
	if m.Prompt == "" {
		m.Prompt = d.Prompt
	}
	return m
}

type authAction int

const (
	authContinue authAction = iota
	authSendPassword
	authSucceeded
	authFailed
)

func (a authAction) String() string {
	switch a {
	case authSendPassword:
		return "send_password"
	case authSucceeded:
		return "succeeded"
	case authFailed:
		return "failed"
	default:
		return "continue"
	}
}

// handshake interprets everything received between connect and login
// completion. Matching is by substring over the text accumulated since the
// last decision, so prompts split across reads or sent without a line
// terminator are still recognized.
type handshake struct {
	markers Markers
	buf     strings.Builder
	result  chan error
	done    bool
}

func newHandshake(markers Markers) *handshake {
	return &handshake{
		markers: markers.withDefaults(),
		result:  make(chan error, 1),
	}
}

// feed returns the next step and the text it was decided on.
// Failure is checked before the password prompt: a rejected login arrives as
// "Login incorrect\r\nPassword: " in one chunk, and matching the prompt first
// would resend the password instead of failing.
func (h *handshake) feed(chunk []byte) (authAction, string) {
	h.buf.Write(chunk)
	msg := h.buf.String()

	switch {
	case strings.Contains(msg, h.markers.Failure):
		h.buf.Reset()
		return authFailed, msg
	case strings.Contains(msg, h.markers.PasswordPrompt):
		h.buf.Reset()
		return authSendPassword, msg
	case strings.Contains(msg, h.markers.Success), strings.Contains(msg, h.markers.Prompt):
		h.buf.Reset()
		return authSucceeded, msg
	}

	// An unrecognized complete line is dropped, keep waiting.
	if strings.HasSuffix(msg, LineTerminator) || h.buf.Len() > MaxFrameSize {
		h.buf.Reset()
	}
	return authContinue, msg
}

// finish delivers the handshake outcome once
func (h *handshake) finish(err error) {
	if h.done {
		return
	}
	h.done = true
	h.result <- err
}

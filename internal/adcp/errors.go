// internal/adcp/errors.go
package adcp

import "errors"

// Error kinds surfaced by the client. Every failure returned by EnsureConnected,
// Send or Execute wraps exactly one of these.
var (
	ErrConnectionTimeout     = errors.New("adcp: connection timeout")
	ErrAuthenticationFailure = errors.New("adcp: authentication failed")
	ErrAuthenticationTimeout = errors.New("adcp: authentication timeout")
	ErrSocket                = errors.New("adcp: socket error")
	ErrCommandTimeout        = errors.New("adcp: command timeout")
	ErrConnectionLost        = errors.New("adcp: connection lost")
	ErrNotConnected          = errors.New("adcp: socket is not connected")
	ErrFrameTooLarge         = errors.New("adcp: response frame too large")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrConnectionTimeout, "ConnectionTimeout"},
	{ErrAuthenticationFailure, "AuthenticationFailure"},
	{ErrAuthenticationTimeout, "AuthenticationTimeout"},
	{ErrCommandTimeout, "CommandTimeout"},
	{ErrNotConnected, "NotConnected"},
	{ErrFrameTooLarge, "FrameTooLarge"},
	// ConnectionLost is checked before SocketError: a socket failure that
	// tears down a session is reported to queued commands as lost.
	{ErrConnectionLost, "ConnectionLost"},
	{ErrSocket, "SocketError"},
}

// ErrorKind returns the name of the error kind wrapped by err, or "" when err
// is not an ADCP error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// IsTimeout reports whether err is one of the three deadline failures
func IsTimeout(err error) bool {
	return errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrAuthenticationTimeout) ||
		errors.Is(err, ErrCommandTimeout)
}

// internal/adcp/client.go
package adcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"adcp-service/internal/protocol"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultCommandTimeout = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second

	readBufferSize = 4096
)

// ConnectionState is the lifecycle state of the ADCP session
type ConnectionState string

const (
	StateDisconnected  ConnectionState = "DISCONNECTED"
	StateConnecting    ConnectionState = "CONNECTING"
	StateConnected     ConnectionState = "CONNECTED"
	StateAuthenticated ConnectionState = "AUTHENTICATED"
)

// Config holds the session parameters. It is copied on NewClient and never
// changes afterwards.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	UseAuth        bool
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	WriteTimeout   time.Duration
	KeepAlive      bool
	Markers        Markers
}

// StateListener is notified of every state transition. It runs with the
// client lock held and must not call back into the client.
type StateListener func(old, new ConnectionState)

// TransportFactory builds the transport for a new connection attempt
type TransportFactory func(config *protocol.TCPConfig, logger *zap.Logger) protocol.Transport

// Option customizes a Client
type Option func(*Client)

// WithStateListener registers a state transition listener
func WithStateListener(listener StateListener) Option {
	return func(c *Client) { c.listener = listener }
}

// WithTransportFactory replaces the TCP transport
func WithTransportFactory(factory TransportFactory) Option {
	return func(c *Client) { c.newTransport = factory }
}

// ClientStats is a point-in-time view of the session
type ClientStats struct {
	State           ConnectionState        `json:"state"`
	ConnectAttempts int64                  `json:"connect_attempts"`
	QueueDepth      int                    `json:"queue_depth"`
	ConnectedSince  *time.Time             `json:"connected_since,omitempty"`
	Transport       protocol.ProtocolStats `json:"transport"`
}

// connectAttempt is the one-shot completion shared by every caller waiting
// on the same connection attempt. err is written before done is closed.
type connectAttempt struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Client speaks ADCP to one projector. It owns a single socket, created on
// first use and recreated after any failure. A Client is safe for concurrent
// use; commands from all callers share one FIFO queue.
type Client struct {
	config       Config
	logger       *zap.Logger
	newTransport TransportFactory
	listener     StateListener

	mu             sync.Mutex
	state          ConnectionState
	transport      protocol.Transport
	session        uint64
	attempt        *connectAttempt
	handshake      *handshake
	framer         *Framer
	queue          []*pendingCommand
	connectedSince time.Time

	connectAttempts atomic.Int64
}

// NewClient creates a disconnected client
func NewClient(config Config, logger *zap.Logger, opts ...Option) *Client {
	if config.Port == 0 {
		config.Port = protocol.DefaultADCPPort
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	config.Markers = config.Markers.withDefaults()

	c := &Client{
		config: config,
		logger: logger.With(
			zap.String("component", "adcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
		state:  StateDisconnected,
		framer: NewFramer(),
		newTransport: func(cfg *protocol.TCPConfig, logger *zap.Logger) protocol.Transport {
			return protocol.NewTCPConnection(cfg, logger)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns session statistics
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := ClientStats{
		State:           c.state,
		ConnectAttempts: c.connectAttempts.Load(),
		QueueDepth:      len(c.queue),
	}
	if c.transport != nil {
		stats.Transport = c.transport.Stats()
		if !c.connectedSince.IsZero() {
			since := c.connectedSince
			stats.ConnectedSince = &since
		}
	}
	return stats
}

// EnsureConnected returns once the session is connected, and authenticated
// when login is enabled. Concurrent callers share a single attempt and all
// observe its outcome. ctx only bounds how long this caller waits; the
// attempt itself is bounded by ConnectTimeout.
func (c *Client) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	if c.liveLocked() {
		c.mu.Unlock()
		return nil
	}
	a := c.attempt
	if a == nil {
		a = c.startAttemptLocked()
	}
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears the session down and rejects every queued command with
// ErrConnectionLost. It is idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(fmt.Errorf("%w: disconnect requested", ErrConnectionLost))
}

// Shutdown releases the socket at process exit
func (c *Client) Shutdown() {
	c.logger.Info("Shutting down ADCP client")
	c.Disconnect()
}

func (c *Client) liveLocked() bool {
	if c.attempt != nil || c.transport == nil || !c.transport.IsOpen() {
		return false
	}
	return c.state == StateConnected || c.state == StateAuthenticated
}

func (c *Client) startAttemptLocked() *connectAttempt {
	// Drop whatever is left of a dead socket before starting over.
	if c.transport != nil {
		c.teardownLocked(fmt.Errorf("%w: socket no longer open", ErrConnectionLost))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	a := &connectAttempt{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.attempt = a
	c.session++
	c.setStateLocked(StateConnecting)

	go c.connect(a, c.session)
	return a
}

// connect runs one attempt to completion: dial, reader start and, when
// enabled, the login exchange, all under the attempt deadline.
func (c *Client) connect(a *connectAttempt, session uint64) {
	defer a.cancel()
	c.connectAttempts.Add(1)

	transport := c.newTransport(&protocol.TCPConfig{
		Host:         c.config.Host,
		Port:         c.config.Port,
		KeepAlive:    c.config.KeepAlive,
		WriteTimeout: c.config.WriteTimeout,
	}, c.logger)

	if err := transport.Open(a.ctx); err != nil {
		c.finishAttempt(a, session, c.dialError(a.ctx, err))
		return
	}

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		transport.Close()
		c.finishAttempt(a, session, fmt.Errorf("%w: disconnected while connecting", ErrConnectionLost))
		return
	}
	c.transport = transport
	c.connectedSince = time.Now()
	c.framer.Reset()
	var hs *handshake
	if c.config.UseAuth {
		hs = newHandshake(c.config.Markers)
		c.handshake = hs
	}
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.Debug("Connected to projector")
	go c.readLoop(transport, session)

	if hs == nil {
		c.finishAttempt(a, session, nil)
		return
	}

	// The username goes out right away; the projector does not wait for a
	// login prompt before accepting it.
	if err := transport.Write(a.ctx, []byte(c.config.Username+LineTerminator)); err != nil {
		c.finishAttempt(a, session, fmt.Errorf("%w: sending username: %v", ErrSocket, err))
		return
	}

	var err error
	select {
	case err = <-hs.result:
	case <-a.ctx.Done():
		select {
		case err = <-hs.result:
		default:
			if errors.Is(a.ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w: no login result within %s", ErrAuthenticationTimeout, c.config.ConnectTimeout)
			} else {
				err = fmt.Errorf("%w: disconnected during login", ErrConnectionLost)
			}
		}
	}
	c.finishAttempt(a, session, err)
}

func (c *Client) dialError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: no connection within %s: %v", ErrConnectionTimeout, c.config.ConnectTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: disconnected while connecting", ErrConnectionLost)
	default:
		return fmt.Errorf("%w: %v", ErrSocket, err)
	}
}

// finishAttempt publishes the outcome to every waiter. A failed attempt
// tears its session down first so no half-open socket survives it.
func (c *Client) finishAttempt(a *connectAttempt, session uint64, err error) {
	c.mu.Lock()
	if err == nil && c.session != session {
		err = fmt.Errorf("%w: disconnected while connecting", ErrConnectionLost)
	}
	if err != nil && c.session == session {
		c.teardownLocked(err)
	}
	if c.attempt == a {
		c.attempt = nil
	}
	state := c.state
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Connection attempt failed", zap.Error(err))
	} else {
		c.logger.Info("Connection established", zap.String("state", string(state)))
	}

	a.err = err
	close(a.done)
}

// teardownLocked closes the socket, fails the handshake and any attempt of
// the current session, and rejects every queued command. Events from the
// closed session are ignored afterwards.
func (c *Client) teardownLocked(cause error) {
	if c.transport == nil && c.attempt == nil && c.handshake == nil &&
		len(c.queue) == 0 && c.state == StateDisconnected {
		return
	}

	c.session++

	if c.transport != nil {
		c.transport.Close()
		c.transport = nil
	}
	c.connectedSince = time.Time{}

	if c.handshake != nil {
		c.handshake.finish(cause)
		c.handshake = nil
	}
	if c.attempt != nil {
		c.attempt.cancel()
		c.attempt = nil
	}

	lost := cause
	if !errors.Is(cause, ErrConnectionLost) {
		lost = fmt.Errorf("%w: %v", ErrConnectionLost, cause)
	}
	if n := len(c.queue); n > 0 {
		c.logger.Warn("Flushing pending commands", zap.Int("count", n), zap.Error(cause))
	}
	for _, pc := range c.queue {
		pc.settle("", lost)
	}
	c.queue = nil
	c.framer.Reset()

	c.setStateLocked(StateDisconnected)
}

func (c *Client) setStateLocked(state ConnectionState) {
	if c.state == state {
		return
	}
	old := c.state
	c.state = state
	c.logger.Debug("Connection state changed",
		zap.String("from", string(old)),
		zap.String("to", string(state)),
	)
	if c.listener != nil {
		c.listener(old, state)
	}
}

// readLoop is the single reader of a session's socket
func (c *Client) readLoop(transport protocol.Transport, session uint64) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := transport.Read(buf)
		if n > 0 {
			c.handleData(session, buf[:n])
		}
		if err != nil {
			c.handleReadError(session, err)
			return
		}
	}
}

func (c *Client) handleReadError(session uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != session {
		return
	}

	if errors.Is(err, io.EOF) {
		c.logger.Debug("Connection closed by projector")
	} else {
		c.logger.Error("Socket error", zap.Error(err))
	}
	c.teardownLocked(fmt.Errorf("%w: %v", ErrSocket, err))
}

func (c *Client) handleData(session uint64, chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != session {
		return
	}

	if c.handshake != nil {
		c.handleAuthDataLocked(chunk)
		return
	}

	frame, ok, err := c.framer.Feed(chunk)
	if err != nil {
		c.logger.Error("Response buffer overflow", zap.Error(err))
		c.teardownLocked(err)
		return
	}
	if !ok {
		return
	}
	c.resolveHeadLocked(frame)
}

func (c *Client) handleAuthDataLocked(chunk []byte) {
	hs := c.handshake
	action, msg := hs.feed(chunk)

	switch action {
	case authSendPassword:
		c.logger.Debug("Password requested")
		if err := c.transport.Write(context.Background(), []byte(c.config.Password+LineTerminator)); err != nil {
			c.teardownLocked(fmt.Errorf("%w: sending password: %v", ErrSocket, err))
		}
	case authSucceeded:
		c.logger.Debug("Authenticated successfully")
		c.handshake = nil
		c.framer.Reset()
		c.setStateLocked(StateAuthenticated)
		hs.finish(nil)
	case authFailed:
		c.logger.Error("Authentication failed")
		c.handshake = nil
		hs.finish(fmt.Errorf("%w: %s", ErrAuthenticationFailure, strings.TrimSpace(msg)))
	default:
		c.logger.Debug("Authentication response", zap.String("message", strings.TrimSpace(msg)))
	}
}

// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotOpen is returned when the connection has not been opened or was closed
var ErrNotOpen = errors.New("TCP connection not open")

// TCPConnection implements Transport for TCP connections
type TCPConnection struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Address returns the host:port the connection dials
func (tc *TCPConnection) Address() string {
	return net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
}

// Open opens the TCP connection. The dial is bounded by ctx and, when set,
// by config.Timeout.
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Debug("Opening TCP connection")

	dialer := &net.Dialer{
		Timeout: tc.config.Timeout,
	}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	} else {
		dialer.KeepAlive = -1
	}

	address := tc.Address()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tc.logger.Debug("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	tc.conn = conn
	tc.isOpen = true

	tc.statsMu.Lock()
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()
	tc.statsMu.Unlock()

	tc.logger.Debug("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection. Closing an already closed connection is a no-op.
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false

	tc.statsMu.Lock()
	tc.stats.IsConnected = false
	tc.statsMu.Unlock()

	if err != nil {
		tc.logger.Warn("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Debug("TCP connection closed")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	conn, err := tc.current()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if tc.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	startTime := time.Now()
	n, err := conn.Write(data)
	if err != nil {
		tc.recordError()
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}
	if n != len(data) {
		tc.recordError()
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tc.statsMu.Lock()
	tc.stats.BytesWritten += int64(n)
	tc.stats.OperationCount++
	tc.stats.LastActivity = time.Now()
	tc.updateAverageLatency(time.Since(startTime))
	tc.statsMu.Unlock()

	return nil
}

// Read blocks until data arrives or the connection fails. It is meant to be
// driven by a single reader goroutine; Close unblocks it.
func (tc *TCPConnection) Read(p []byte) (int, error) {
	conn, err := tc.current()
	if err != nil {
		return 0, err
	}

	n, err := conn.Read(p)
	if n > 0 {
		tc.statsMu.Lock()
		tc.stats.BytesRead += int64(n)
		tc.stats.OperationCount++
		tc.stats.LastActivity = time.Now()
		tc.statsMu.Unlock()
	}
	if err != nil {
		tc.recordError()
		return n, fmt.Errorf("failed to read from TCP connection: %w", err)
	}
	return n, nil
}

// Stats returns a copy of the connection statistics
func (tc *TCPConnection) Stats() ProtocolStats {
	tc.statsMu.Lock()
	defer tc.statsMu.Unlock()
	return tc.stats
}

func (tc *TCPConnection) current() (net.Conn, error) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	if !tc.isOpen || tc.conn == nil {
		return nil, ErrNotOpen
	}
	return tc.conn, nil
}

func (tc *TCPConnection) recordError() {
	tc.statsMu.Lock()
	tc.stats.ErrorCount++
	tc.statsMu.Unlock()
}

// updateAverageLatency updates the running average latency, statsMu must be held
func (tc *TCPConnection) updateAverageLatency(newLatency time.Duration) {
	if tc.stats.AverageLatency == 0 {
		tc.stats.AverageLatency = newLatency
	} else {
		tc.stats.AverageLatency = (tc.stats.AverageLatency + newLatency) / 2
	}
}

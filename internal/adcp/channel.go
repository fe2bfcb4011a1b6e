// internal/adcp/channel.go
package adcp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type commandResult struct {
	frame string
	err   error
}

// pendingCommand is one request waiting for its response. The protocol has
// no correlation id: the head of the queue owns the next frame.
type pendingCommand struct {
	text      string
	createdAt time.Time
	sentAt    time.Time
	deadline  time.Time
	timer     *time.Timer
	result    chan commandResult
	settled   bool
}

func newPendingCommand(text string) *pendingCommand {
	return &pendingCommand{
		text:      text,
		createdAt: time.Now(),
		result:    make(chan commandResult, 1),
	}
}

// settle resolves the command once and cancels its deadline. Callers hold
// the client lock.
func (pc *pendingCommand) settle(frame string, err error) {
	if pc.settled {
		return
	}
	pc.settled = true
	if pc.timer != nil {
		pc.timer.Stop()
	}
	pc.result <- commandResult{frame: frame, err: err}
}

// Send queues command and returns the frame received for it. The session
// must already be established; otherwise ErrNotConnected is returned without
// touching the queue. Only the head of the queue is ever on the wire, the
// next command is written when the previous one settles.
//
// Cancelling ctx stops this caller from waiting but leaves the command in
// the queue, since a request already written cannot be taken back.
func (c *Client) Send(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	if !c.liveLocked() {
		c.mu.Unlock()
		return "", ErrNotConnected
	}

	pc := newPendingCommand(command)
	c.queue = append(c.queue, pc)
	if len(c.queue) == 1 {
		c.dispatchLocked()
	}
	c.mu.Unlock()

	select {
	case r := <-pc.result:
		return r.frame, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Execute connects if needed and sends command
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	startTime := time.Now()

	if err := c.EnsureConnected(ctx); err != nil {
		c.logger.Error("Failed to execute command", zap.String("command", command), zap.Error(err))
		return "", err
	}

	response, err := c.Send(ctx, command)
	if err != nil {
		c.logger.Error("Failed to execute command", zap.String("command", command), zap.Error(err))
		return "", err
	}

	c.logger.Debug("Command executed",
		zap.String("command", command),
		zap.String("response", response),
		zap.Duration("duration", time.Since(startTime)),
	)
	return response, nil
}

// dispatchLocked writes the queue head and arms its deadline
func (c *Client) dispatchLocked() {
	pc := c.queue[0]
	session := c.session

	pc.sentAt = time.Now()
	pc.deadline = pc.sentAt.Add(c.config.CommandTimeout)
	pc.timer = time.AfterFunc(c.config.CommandTimeout, func() {
		c.expire(pc, session)
	})

	if err := c.transport.Write(context.Background(), []byte(pc.text+LineTerminator)); err != nil {
		c.queue = c.queue[1:]
		pc.settle("", fmt.Errorf("%w: writing %q: %v", ErrSocket, pc.text, err))
		c.teardownLocked(fmt.Errorf("%w: write failed: %v", ErrSocket, err))
	}
}

// resolveHeadLocked hands frame to the oldest pending command and puts the
// next one on the wire
func (c *Client) resolveHeadLocked(frame string) {
	if len(c.queue) == 0 {
		c.logger.Debug("Discarding unsolicited frame", zap.String("frame", frame))
		return
	}

	pc := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	pc.settle(frame, nil)

	if len(c.queue) > 0 {
		c.dispatchLocked()
	}
}

// expire fires when a command got no response in time. The session is
// presumed out of step and is torn down, failing everything behind it.
func (c *Client) expire(pc *pendingCommand, session uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pc.settled || c.session != session {
		return
	}

	for i, queued := range c.queue {
		if queued == pc {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}

	c.logger.Warn("Command timed out, dropping connection",
		zap.String("command", pc.text),
		zap.Duration("timeout", c.config.CommandTimeout),
	)
	pc.settle("", fmt.Errorf("%w: no response to %q within %s", ErrCommandTimeout, pc.text, c.config.CommandTimeout))
	c.teardownLocked(fmt.Errorf("%w: command %q timed out", ErrConnectionLost, pc.text))
}

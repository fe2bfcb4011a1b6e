// internal/status/poller.go
package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshot is the latest view of the polled status
type Snapshot struct {
	Values      map[string]string `json:"values"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
	LastAttempt *time.Time        `json:"last_attempt,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
}

// Poller fetches status on a fixed interval. Its failures are logged and
// kept in the snapshot; they never reach the ADCP session.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	onUpdate func(Snapshot)

	mu       sync.RWMutex
	snapshot Snapshot
}

// PollerOption customizes a Poller
type PollerOption func(*Poller)

// WithUpdateCallback is called after every poll, successful or not
func WithUpdateCallback(fn func(Snapshot)) PollerOption {
	return func(p *Poller) { p.onUpdate = fn }
}

// WithPollTimeout bounds a single poll
func WithPollTimeout(timeout time.Duration) PollerOption {
	return func(p *Poller) { p.timeout = timeout }
}

// NewPoller creates a poller
func NewPoller(fetcher Fetcher, interval time.Duration, logger *zap.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: interval,
		timeout:  interval,
		logger:   logger.With(zap.String("component", "status_poller")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then every interval until ctx is done
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Status poller started", zap.Duration("interval", p.interval))
	defer p.logger.Info("Status poller stopped")

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one fetch and records the outcome
func (p *Poller) Poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	values, err := p.fetcher.FetchStatus(pollCtx)
	now := time.Now()

	p.mu.Lock()
	p.snapshot.LastAttempt = &now
	if err != nil {
		p.snapshot.LastError = err.Error()
		p.logger.Warn("Status poll failed", zap.Error(err))
	} else {
		p.snapshot.Values = values
		p.snapshot.UpdatedAt = &now
		p.snapshot.LastError = ""
		p.logger.Debug("Status updated", zap.Int("values", len(values)))
	}
	snapshot := p.copyLocked()
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(snapshot)
	}
}

// Snapshot returns a copy of the latest status
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyLocked()
}

func (p *Poller) copyLocked() Snapshot {
	s := p.snapshot
	s.Values = make(map[string]string, len(p.snapshot.Values))
	for k, v := range p.snapshot.Values {
		s.Values[k] = v
	}
	return s
}

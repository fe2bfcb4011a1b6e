// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"adcp-service/internal/model"
)

// memoryRepository keeps the most recent operations in a bounded ring
type memoryRepository struct {
	mu       sync.RWMutex
	capacity int
	ring     []*model.Operation
	next     int
	index    map[uuid.UUID]int
}

// NewMemoryOperationRepository creates a repository holding at most
// capacity operations. The oldest entry is evicted when it is full.
func NewMemoryOperationRepository(capacity int) OperationRepository {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryRepository{
		capacity: capacity,
		ring:     make([]*model.Operation, 0, capacity),
		index:    make(map[uuid.UUID]int, capacity),
	}
}

func (r *memoryRepository) Create(ctx context.Context, operation *model.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[operation.ID]; exists {
		return fmt.Errorf("operation %s already exists", operation.ID)
	}

	stored := cloneOperation(operation)
	if len(r.ring) < r.capacity {
		r.index[stored.ID] = len(r.ring)
		r.ring = append(r.ring, stored)
		return nil
	}

	delete(r.index, r.ring[r.next].ID)
	r.ring[r.next] = stored
	r.index[stored.ID] = r.next
	r.next = (r.next + 1) % r.capacity
	return nil
}

func (r *memoryRepository) Update(ctx context.Context, operation *model.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.index[operation.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, operation.ID)
	}
	r.ring[slot] = cloneOperation(operation)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneOperation(r.ring[slot]), nil
}

func (r *memoryRepository) ListRecent(ctx context.Context, filter *OperationFilter) ([]*model.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.limit()
	operations := make([]*model.Operation, 0, min(limit, len(r.ring)))

	r.newestFirst(func(op *model.Operation) bool {
		if filter.matches(op) {
			operations = append(operations, cloneOperation(op))
		}
		return len(operations) < limit
	})
	return operations, nil
}

func (r *memoryRepository) GetOperationStats(ctx context.Context) (*OperationStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := newOperationStats()
	var totalMs, timed int
	for _, op := range r.ring {
		stats.add(op.OperationType, op.Status, 1)
		if op.DurationMs != nil {
			totalMs += *op.DurationMs
			timed++
		}
	}
	if timed > 0 {
		stats.AvgDurationMs = float64(totalMs) / float64(timed)
	}
	return stats, nil
}

func (r *memoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*model.Operation, 0, r.capacity)
	r.oldestFirst(func(op *model.Operation) {
		if !op.CreatedAt.Before(cutoff) {
			kept = append(kept, op)
		}
	})

	deleted := int64(len(r.ring) - len(kept))
	r.ring = kept
	r.next = 0
	r.index = make(map[uuid.UUID]int, r.capacity)
	for i, op := range r.ring {
		r.index[op.ID] = i
	}
	return deleted, nil
}

// oldestFirst walks the ring in insertion order
func (r *memoryRepository) oldestFirst(fn func(*model.Operation)) {
	n := len(r.ring)
	for i := 0; i < n; i++ {
		fn(r.ring[(r.next+i)%n])
	}
}

// newestFirst walks the ring backwards until fn returns false
func (r *memoryRepository) newestFirst(fn func(*model.Operation) bool) {
	n := len(r.ring)
	for i := 1; i <= n; i++ {
		if !fn(r.ring[((r.next-i)%n+n)%n]) {
			return
		}
	}
}

func cloneOperation(op *model.Operation) *model.Operation {
	c := *op
	c.OperationData = cloneObject(op.OperationData)
	c.Result = cloneObject(op.Result)
	return &c
}

func cloneObject(obj model.JSONObject) model.JSONObject {
	if obj == nil {
		return nil
	}
	c := make(model.JSONObject, len(obj))
	for k, v := range obj {
		c[k] = v
	}
	return c
}

// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"adcp-service/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an operation does not exist
var ErrNotFound = errors.New("operation not found")

// OperationRepository defines operation history access
type OperationRepository interface {
	Create(ctx context.Context, operation *model.Operation) error
	Update(ctx context.Context, operation *model.Operation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Operation, error)

	// ListRecent returns operations newest first
	ListRecent(ctx context.Context, filter *OperationFilter) ([]*model.Operation, error)
	GetOperationStats(ctx context.Context) (*OperationStats, error)

	// DeleteOlderThan removes operations created before the cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// OperationFilter represents operation listing filters
type OperationFilter struct {
	OperationType *model.OperationType   `json:"operation_type,omitempty"`
	Status        *model.OperationStatus `json:"status,omitempty"`
	Limit         int                    `json:"limit"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f *OperationFilter) limit() int {
	if f == nil || f.Limit <= 0 {
		return defaultListLimit
	}
	if f.Limit > maxListLimit {
		return maxListLimit
	}
	return f.Limit
}

func (f *OperationFilter) matches(op *model.Operation) bool {
	if f == nil {
		return true
	}
	if f.OperationType != nil && op.OperationType != *f.OperationType {
		return false
	}
	if f.Status != nil && op.Status != *f.Status {
		return false
	}
	return true
}

// OperationStats represents operation statistics
type OperationStats struct {
	TotalOperations int                           `json:"total_operations"`
	SuccessfulOps   int                           `json:"successful_operations"`
	FailedOps       int                           `json:"failed_operations"`
	TimedOutOps     int                           `json:"timed_out_operations"`
	PendingOps      int                           `json:"pending_operations"`
	AvgDurationMs   float64                       `json:"average_duration_ms"`
	ByType          map[model.OperationType]int   `json:"by_type"`
	ByStatus        map[model.OperationStatus]int `json:"by_status"`
}

func newOperationStats() *OperationStats {
	return &OperationStats{
		ByType:   make(map[model.OperationType]int),
		ByStatus: make(map[model.OperationStatus]int),
	}
}

func (s *OperationStats) add(opType model.OperationType, status model.OperationStatus, count int) {
	s.TotalOperations += count
	s.ByType[opType] += count
	s.ByStatus[status] += count
	switch status {
	case model.OperationStatusSuccess:
		s.SuccessfulOps += count
	case model.OperationStatusFailed:
		s.FailedOps += count
	case model.OperationStatusTimeout:
		s.TimedOutOps += count
	case model.OperationStatusPending:
		s.PendingOps += count
	}
}

// internal/repository/operation_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adcp-service/internal/database"
	"adcp-service/internal/model"
	"adcp-service/internal/utils"
)

const operationColumns = `id, operation_type, operation_data, status, started_at,
	completed_at, duration_ms, error_kind, error_message, result, request_id, created_at`

// operationRepository implements OperationRepository on postgres
type operationRepository struct {
	db     *database.DB
	logger *utils.ServiceLogger
}

// NewOperationRepository creates a postgres backed operation repository
func NewOperationRepository(db *database.DB, logger *zap.Logger) OperationRepository {
	return &operationRepository{
		db:     db,
		logger: utils.NewServiceLogger(logger, "operation-repository"),
	}
}

// Create creates a new operation
func (r *operationRepository) Create(ctx context.Context, operation *model.Operation) error {
	query := `
		INSERT INTO projector_operations (
			id, operation_type, operation_data, status, started_at, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		operation.ID, operation.OperationType, operation.OperationData,
		operation.Status, operation.StartedAt, operation.RequestID, operation.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create operation", zap.Error(err))
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

// Update records the outcome of an operation
func (r *operationRepository) Update(ctx context.Context, operation *model.Operation) error {
	query := `
		UPDATE projector_operations SET
			status = $2, completed_at = $3, duration_ms = $4,
			error_kind = $5, error_message = $6, result = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		operation.ID, operation.Status, operation.CompletedAt,
		operation.DurationMs, operation.ErrorKind, operation.ErrorMessage,
		operation.Result,
	)

	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, operation.ID)
	}

	return nil
}

// GetByID retrieves an operation by ID
func (r *operationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM projector_operations WHERE id = $1`

	operation, err := scanOperation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return operation, nil
}

// ListRecent lists operations newest first
func (r *operationRepository) ListRecent(ctx context.Context, filter *OperationFilter) ([]*model.Operation, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter != nil && filter.OperationType != nil {
		args = append(args, *filter.OperationType)
		conditions = append(conditions, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	if filter != nil && filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + operationColumns + ` FROM projector_operations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var operations []*model.Operation
	for rows.Next() {
		operation, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, operation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}

	r.logger.Debug("Listed operations",
		zap.Int("count", len(operations)),
		zap.Duration("duration", time.Since(start)),
	)
	return operations, nil
}

// GetOperationStats aggregates the stored history
func (r *operationRepository) GetOperationStats(ctx context.Context) (*OperationStats, error) {
	query := `
		SELECT operation_type, status, COUNT(*)
		FROM projector_operations
		GROUP BY operation_type, status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation stats: %w", err)
	}
	defer rows.Close()

	stats := newOperationStats()
	for rows.Next() {
		var (
			opType model.OperationType
			status model.OperationStatus
			count  int
		)
		if err := rows.Scan(&opType, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan operation stats: %w", err)
		}
		stats.add(opType, status, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation stats: %w", err)
	}

	var avg sql.NullFloat64
	err = r.db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms) FROM projector_operations WHERE duration_ms IS NOT NULL`,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to get average duration: %w", err)
	}
	stats.AvgDurationMs = avg.Float64

	return stats, nil
}

// DeleteOlderThan removes history created before cutoff
func (r *operationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM projector_operations WHERE created_at < $1`

	startTime := time.Now()
	result, err := r.db.ExecContext(ctx, query, cutoff)
	r.logger.LogDatabaseQuery(query, time.Since(startTime), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old operations: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*model.Operation, error) {
	operation := &model.Operation{}
	err := row.Scan(
		&operation.ID, &operation.OperationType, &operation.OperationData,
		&operation.Status, &operation.StartedAt, &operation.CompletedAt,
		&operation.DurationMs, &operation.ErrorKind, &operation.ErrorMessage,
		&operation.Result, &operation.RequestID, &operation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return operation, nil
}

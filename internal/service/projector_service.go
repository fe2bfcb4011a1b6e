// internal/service/projector_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adcp-service/internal/adcp"
	"adcp-service/internal/model"
	"adcp-service/internal/repository"
	"adcp-service/internal/status"
	"adcp-service/internal/utils"
	"adcp-service/pkg/driver"
)

const eventSource = "projector-service"

// EventPublisher receives service events
type EventPublisher interface {
	Publish(event model.ProjectorEvent)
}

// Session is the connection side of the ADCP client
type Session interface {
	Stats() adcp.ClientStats
	Disconnect()
}

// StatusSource provides the latest SNMP status
type StatusSource interface {
	Snapshot() status.Snapshot
}

// PowerState is the answer to a power query. Cached is set when the
// projector could not be reached and the last known value was returned.
type PowerState struct {
	On         bool      `json:"on"`
	Cached     bool      `json:"cached"`
	ObservedAt time.Time `json:"observed_at"`
}

// ConnectionInfo describes the projector and its session
type ConnectionInfo struct {
	Projector *model.ProjectorInfo  `json:"projector"`
	Session   adcp.ClientStats      `json:"session"`
	Health    *driver.HealthMetrics `json:"health"`
}

// ProjectorService adapts the projector driver to the HTTP surface
type ProjectorService struct {
	driver        driver.ProjectorDriver
	session       Session
	operationRepo repository.OperationRepository
	events        EventPublisher
	statusSource  StatusSource
	logger        *utils.ServiceLogger
	auditLogger   *utils.AuditLogger

	mu        sync.RWMutex
	lastPower *PowerState
}

// ServiceOption customizes a ProjectorService
type ServiceOption func(*ProjectorService)

// WithStatusSource attaches the SNMP poller
func WithStatusSource(source StatusSource) ServiceOption {
	return func(s *ProjectorService) { s.statusSource = source }
}

// NewProjectorService creates a new projector service instance
func NewProjectorService(
	projectorDriver driver.ProjectorDriver,
	session Session,
	operationRepo repository.OperationRepository,
	events EventPublisher,
	logger *zap.Logger,
	opts ...ServiceOption,
) *ProjectorService {
	s := &ProjectorService{
		driver:        projectorDriver,
		session:       session,
		operationRepo: operationRepo,
		events:        events,
		logger:        utils.NewServiceLogger(logger, "projector-service"),
		auditLogger:   utils.NewAuditLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPowerState queries the projector. When the query fails and a previous
// value is known, that value is returned with Cached set instead of the error.
func (s *ProjectorService) GetPowerState(ctx context.Context) (*PowerState, error) {
	on, err := s.driver.GetPowerState(ctx)
	if err != nil {
		s.mu.RLock()
		last := s.lastPower
		s.mu.RUnlock()

		if last == nil {
			return nil, err
		}
		s.logger.Warn("Power query failed, returning last known state",
			zap.Error(err),
			zap.Bool("on", last.On),
			zap.Time("observed_at", last.ObservedAt),
		)
		return &PowerState{On: last.On, Cached: true, ObservedAt: last.ObservedAt}, nil
	}

	return s.recordPower(on, "query"), nil
}

// SetPowerState switches the projector. Failures are always returned.
func (s *ProjectorService) SetPowerState(ctx context.Context, on bool, requestID string) (string, error) {
	response, err := s.driver.SetPowerState(ctx, on)
	s.auditLogger.LogPowerChange(s.projectorName(), on, requestID, err)
	if err != nil {
		return "", err
	}

	s.recordPower(on, "set")
	return response, nil
}

// ExecuteOperation runs a typed operation and records it in the history.
// The returned operation carries the outcome even when err is non-nil.
func (s *ProjectorService) ExecuteOperation(ctx context.Context, req *model.ExecuteOperationRequest, requestID string) (*model.Operation, error) {
	operation := model.NewOperation(req.OperationType, req.OperationData)
	if requestID != "" {
		operation.RequestID = &requestID
	}

	if err := s.operationRepo.Create(ctx, operation); err != nil {
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}

	opLogger := utils.NewOperationLogger(utils.LoggerWithRequestID(s.logger.Logger, requestID), string(req.OperationType), operation.ID.String())
	opLogger.Start()
	s.publishOperation(model.EventOperationStarted, model.SeverityInfo, operation)

	result, err := s.driver.ExecuteOperation(ctx, operation)

	// The outcome is recorded even if the caller has gone away.
	recordCtx := context.WithoutCancel(ctx)

	if err != nil {
		opStatus := model.OperationStatusFailed
		if adcp.IsTimeout(err) {
			opStatus = model.OperationStatusTimeout
		}
		operation.Fail(opStatus, adcp.ErrorKind(err), err)
		s.updateOperation(recordCtx, operation)

		opLogger.Error(err, zap.String("status", string(opStatus)))
		s.auditLogger.LogOperation(s.projectorName(), string(operation.OperationType), operation.ID.String(), string(opStatus))
		s.publishOperation(model.EventOperationFailed, model.SeverityError, operation)
		return operation, err
	}

	outcome := model.JSONObject{
		"commands": result.Commands,
		"response": result.Response,
	}
	for k, v := range result.Data {
		outcome[k] = v
	}
	operation.Complete(outcome)
	s.updateOperation(recordCtx, operation)

	opLogger.Success(zap.Strings("commands", result.Commands))
	s.auditLogger.LogOperation(s.projectorName(), string(operation.OperationType), operation.ID.String(), string(operation.Status))
	s.publishOperation(model.EventOperationCompleted, model.SeverityInfo, operation)

	if on, ok := result.Data["on"].(bool); ok {
		source := "query"
		if operation.OperationType == model.OperationTypePower {
			source = "set"
		}
		s.recordPower(on, source)
	}

	return operation, nil
}

// ListOperations returns recent operations, newest first
func (s *ProjectorService) ListOperations(ctx context.Context, filter *repository.OperationFilter) ([]*model.Operation, error) {
	operations, err := s.operationRepo.ListRecent(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return operations, nil
}

// GetOperation returns one operation. Unknown ids wrap repository.ErrNotFound.
func (s *ProjectorService) GetOperation(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	return s.operationRepo.GetByID(ctx, id)
}

// GetOperationStats summarizes the operation history
func (s *ProjectorService) GetOperationStats(ctx context.Context) (*repository.OperationStats, error) {
	return s.operationRepo.GetOperationStats(ctx)
}

// CleanupOperations deletes history older than retention
func (s *ProjectorService) CleanupOperations(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.operationRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup operations: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("Cleaned up old operations", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// ConnectionInfo returns the projector description and session statistics
func (s *ProjectorService) ConnectionInfo() *ConnectionInfo {
	return &ConnectionInfo{
		Projector: s.driver.GetDeviceInfo(),
		Session:   s.session.Stats(),
		Health:    s.driver.GetHealthMetrics(),
	}
}

// Disconnect drops the current session; the next command reconnects
func (s *ProjectorService) Disconnect() {
	s.logger.Info("Disconnecting projector session")
	s.session.Disconnect()
}

// Shutdown releases the projector session
func (s *ProjectorService) Shutdown() {
	s.driver.Shutdown()
	s.logger.Info("Projector service stopped")
}

// StatusSnapshot returns the SNMP status. ok is false when polling is off.
func (s *ProjectorService) StatusSnapshot() (status.Snapshot, bool) {
	if s.statusSource == nil {
		return status.Snapshot{}, false
	}
	return s.statusSource.Snapshot(), true
}

// LastPowerState returns the cached power value, if any
func (s *ProjectorService) LastPowerState() (*PowerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPower == nil {
		return nil, false
	}
	state := *s.lastPower
	return &state, true
}

// recordPower caches an observed value and publishes POWER_CHANGED when it
// was set by a caller or differs from what was known before.
func (s *ProjectorService) recordPower(on bool, source string) *PowerState {
	state := &PowerState{On: on, ObservedAt: time.Now()}

	s.mu.Lock()
	previous := s.lastPower
	s.lastPower = state
	s.mu.Unlock()

	if source == "set" || previous == nil || previous.On != on {
		s.publish(model.NewProjectorEvent(model.EventPowerChanged, eventSource, model.SeverityInfo, model.JSONObject{
			"on":     on,
			"source": source,
		}))
	}

	result := *state
	return &result
}

func (s *ProjectorService) updateOperation(ctx context.Context, operation *model.Operation) {
	if err := s.operationRepo.Update(ctx, operation); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Failed to update operation",
			zap.Error(err),
			zap.String("operation_id", operation.ID.String()),
		)
	}
}

func (s *ProjectorService) publishOperation(eventType model.EventType, severity string, operation *model.Operation) {
	data := model.OperationEventData{
		OperationID:   operation.ID,
		OperationType: operation.OperationType,
		Status:        operation.Status,
		Duration:      operation.DurationMs,
		ErrorMessage:  operation.ErrorMessage,
	}
	s.publish(model.NewProjectorEvent(eventType, eventSource, severity, data.ToJSON()))
}

func (s *ProjectorService) publish(event model.ProjectorEvent) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

func (s *ProjectorService) projectorName() string {
	return s.driver.GetDeviceInfo().Name
}

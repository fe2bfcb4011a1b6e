package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"adcp-service/internal/adcp"
	"adcp-service/internal/model"
	"adcp-service/internal/repository"
	"adcp-service/internal/status"
	"adcp-service/pkg/driver"
)

// fakeDriver implements the methods the service calls; the rest of
// driver.ProjectorDriver is left to the embedded nil interface.
type fakeDriver struct {
	driver.ProjectorDriver

	mu         sync.Mutex
	on         bool
	queryErr   error
	setErr     error
	execErr    error
	execResult *driver.OperationResult
	shutdown   bool
}

func (d *fakeDriver) GetPowerState(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on, d.queryErr
}

func (d *fakeDriver) SetPowerState(ctx context.Context, on bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.setErr != nil {
		return "", d.setErr
	}
	d.on = on
	return "ok", nil
}

func (d *fakeDriver) ExecuteOperation(ctx context.Context, op *model.Operation) (*driver.OperationResult, error) {
	if d.execErr != nil {
		return nil, d.execErr
	}
	return d.execResult, nil
}

func (d *fakeDriver) GetDeviceInfo() *model.ProjectorInfo {
	return &model.ProjectorInfo{Name: "Theater", Manufacturer: "Sony", Model: "VPL-XW5000ES"}
}

func (d *fakeDriver) GetHealthMetrics() *driver.HealthMetrics {
	return &driver.HealthMetrics{HealthScore: 100}
}

func (d *fakeDriver) Shutdown() { d.shutdown = true }

type fakeSession struct {
	disconnects int
}

func (s *fakeSession) Stats() adcp.ClientStats {
	return adcp.ClientStats{State: adcp.StateAuthenticated, ConnectAttempts: 1}
}

func (s *fakeSession) Disconnect() { s.disconnects++ }

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ProjectorEvent
}

func (p *recordingPublisher) Publish(event model.ProjectorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []model.EventType
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

type fixture struct {
	svc     *ProjectorService
	driver  *fakeDriver
	session *fakeSession
	events  *recordingPublisher
	repo    repository.OperationRepository
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fixture{
		driver:  &fakeDriver{},
		session: &fakeSession{},
		events:  &recordingPublisher{},
		repo:    repository.NewMemoryOperationRepository(10),
		logs:    logs,
	}
	f.svc = NewProjectorService(f.driver, f.session, f.repo, f.events, zap.New(core), opts...)
	return f
}

func TestGetPowerStateCachedFallback(t *testing.T) {
	f := newFixture(t)
	f.driver.queryErr = fmt.Errorf("send: %w", adcp.ErrConnectionTimeout)

	_, err := f.svc.GetPowerState(context.Background())
	assert.ErrorIs(t, err, adcp.ErrConnectionTimeout, "no cached value yet")

	f.driver.queryErr = nil
	f.driver.on = true
	state, err := f.svc.GetPowerState(context.Background())
	require.NoError(t, err)
	assert.True(t, state.On)
	assert.False(t, state.Cached)

	f.driver.queryErr = adcp.ErrCommandTimeout
	f.driver.on = false
	cached, err := f.svc.GetPowerState(context.Background())
	require.NoError(t, err)
	assert.True(t, cached.On)
	assert.True(t, cached.Cached)
	assert.Equal(t, state.ObservedAt, cached.ObservedAt)
}

func TestSetPowerStateSurfacesErrors(t *testing.T) {
	f := newFixture(t)
	f.driver.on = true
	_, err := f.svc.GetPowerState(context.Background())
	require.NoError(t, err)

	f.driver.setErr = adcp.ErrNotConnected
	_, err = f.svc.SetPowerState(context.Background(), false, "req-1")
	assert.ErrorIs(t, err, adcp.ErrNotConnected)

	audit := f.logs.FilterMessage("Projector power change").All()
	require.Len(t, audit, 1)
	assert.Equal(t, false, audit[0].ContextMap()["success"])
	assert.Equal(t, "req-1", audit[0].ContextMap()["request_id"])

	last, ok := f.svc.LastPowerState()
	require.True(t, ok)
	assert.True(t, last.On, "failed set leaves the cache alone")
}

func TestSetPowerStatePublishes(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.SetPowerState(context.Background(), true, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = f.svc.SetPowerState(context.Background(), true, "")
	require.NoError(t, err)

	assert.Equal(t, []model.EventType{model.EventPowerChanged, model.EventPowerChanged}, f.events.types())
	last, ok := f.svc.LastPowerState()
	require.True(t, ok)
	assert.True(t, last.On)
}

func TestPowerQueryPublishesOnlyOnChange(t *testing.T) {
	f := newFixture(t)
	f.driver.on = true

	for i := 0; i < 3; i++ {
		_, err := f.svc.GetPowerState(context.Background())
		require.NoError(t, err)
	}
	f.driver.on = false
	_, err := f.svc.GetPowerState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.EventType{model.EventPowerChanged, model.EventPowerChanged}, f.events.types())
}

func TestExecuteOperationSuccess(t *testing.T) {
	f := newFixture(t)
	f.driver.execResult = &driver.OperationResult{
		Success:  true,
		Commands: []string{`input "hdmi1"`},
		Response: "ok",
	}

	op, err := f.svc.ExecuteOperation(context.Background(), &model.ExecuteOperationRequest{
		OperationType: model.OperationTypeInput,
		OperationData: model.JSONObject{"input": "hdmi1"},
	}, "req-7")
	require.NoError(t, err)
	assert.Equal(t, model.OperationStatusSuccess, op.Status)
	assert.Equal(t, "ok", op.Result["response"])

	stored, err := f.svc.GetOperation(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OperationStatusSuccess, stored.Status)
	require.NotNil(t, stored.RequestID)
	assert.Equal(t, "req-7", *stored.RequestID)

	assert.Equal(t, []model.EventType{model.EventOperationStarted, model.EventOperationCompleted}, f.events.types())
}

func TestExecuteOperationFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status model.OperationStatus
		kind   string
	}{
		{"command timeout", adcp.ErrCommandTimeout, model.OperationStatusTimeout, "CommandTimeout"},
		{"connect timeout", fmt.Errorf("dial: %w", adcp.ErrConnectionTimeout), model.OperationStatusTimeout, "ConnectionTimeout"},
		{"auth failure", adcp.ErrAuthenticationFailure, model.OperationStatusFailed, "AuthenticationFailure"},
		{"other", errors.New("invalid level"), model.OperationStatusFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.driver.execErr = tt.err

			op, err := f.svc.ExecuteOperation(context.Background(), &model.ExecuteOperationRequest{
				OperationType: model.OperationTypeVolume,
				OperationData: model.JSONObject{"level": 10},
			}, "")
			assert.ErrorIs(t, err, tt.err)
			require.NotNil(t, op)
			assert.Equal(t, tt.status, op.Status)

			stored, err := f.svc.GetOperation(context.Background(), op.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, stored.Status)
			if tt.kind == "" {
				assert.Nil(t, stored.ErrorKind)
			} else {
				require.NotNil(t, stored.ErrorKind)
				assert.Equal(t, tt.kind, *stored.ErrorKind)
			}
			assert.Equal(t, []model.EventType{model.EventOperationStarted, model.EventOperationFailed}, f.events.types())
		})
	}
}

func TestExecutePowerOperationUpdatesCache(t *testing.T) {
	f := newFixture(t)
	f.driver.execResult = &driver.OperationResult{
		Success:  true,
		Commands: []string{`power "on"`},
		Data:     map[string]interface{}{"on": true},
	}

	_, err := f.svc.ExecuteOperation(context.Background(), &model.ExecuteOperationRequest{
		OperationType: model.OperationTypePower,
		OperationData: model.JSONObject{"on": true},
	}, "")
	require.NoError(t, err)

	last, ok := f.svc.LastPowerState()
	require.True(t, ok)
	assert.True(t, last.On)
	assert.Contains(t, f.events.types(), model.EventPowerChanged)
}

func TestConnectionInfoAndLifecycle(t *testing.T) {
	f := newFixture(t)

	info := f.svc.ConnectionInfo()
	assert.Equal(t, "Theater", info.Projector.Name)
	assert.Equal(t, adcp.StateAuthenticated, info.Session.State)
	assert.Equal(t, 100, info.Health.HealthScore)

	f.svc.Disconnect()
	assert.Equal(t, 1, f.session.disconnects)

	f.svc.Shutdown()
	assert.True(t, f.driver.shutdown)
}

type staticStatus struct{ snap status.Snapshot }

func (s staticStatus) Snapshot() status.Snapshot { return s.snap }

func TestStatusSnapshot(t *testing.T) {
	f := newFixture(t)
	_, ok := f.svc.StatusSnapshot()
	assert.False(t, ok)

	f = newFixture(t, WithStatusSource(staticStatus{status.Snapshot{Values: map[string]string{"lamp": "1200"}}}))
	snap, ok := f.svc.StatusSnapshot()
	require.True(t, ok)
	assert.Equal(t, "1200", snap.Values["lamp"])
}

func TestCleanupOperations(t *testing.T) {
	f := newFixture(t)
	old := model.NewOperation(model.OperationTypeMute, nil)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.repo.Create(context.Background(), old))
	fresh := model.NewOperation(model.OperationTypeMute, nil)
	require.NoError(t, f.repo.Create(context.Background(), fresh))

	deleted, err := f.svc.CleanupOperations(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	ops, err := f.svc.ListOperations(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, fresh.ID, ops[0].ID)
}

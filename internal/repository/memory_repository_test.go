package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcp-service/internal/model"
)

func createOps(t *testing.T, repo OperationRepository, n int) []*model.Operation {
	t.Helper()
	ops := make([]*model.Operation, n)
	base := time.Now().Add(-time.Hour)
	for i := range ops {
		op := model.NewOperation(model.OperationTypePower, model.JSONObject{"on": i%2 == 0})
		op.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(context.Background(), op))
		ops[i] = op
	}
	return ops
}

func TestMemoryRepositoryListNewestFirst(t *testing.T) {
	repo := NewMemoryOperationRepository(10)
	ops := createOps(t, repo, 3)

	list, err := repo.ListRecent(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ops[2].ID, list[0].ID)
	assert.Equal(t, ops[0].ID, list[2].ID)
}

func TestMemoryRepositoryEvictsOldest(t *testing.T) {
	repo := NewMemoryOperationRepository(3)
	ops := createOps(t, repo, 5)

	_, err := repo.GetByID(context.Background(), ops[0].ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = repo.GetByID(context.Background(), ops[1].ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err := repo.ListRecent(context.Background(), &OperationFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{ops[4].ID, ops[3].ID, ops[2].ID},
		[]uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
}

func TestMemoryRepositoryUpdateAndIsolation(t *testing.T) {
	repo := NewMemoryOperationRepository(5)
	op := model.NewOperation(model.OperationTypeInput, model.JSONObject{"input": "hdmi1"})
	require.NoError(t, repo.Create(context.Background(), op))

	op.OperationData["input"] = "mutated"
	stored, err := repo.GetByID(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, "hdmi1", stored.OperationData["input"], "stored copy is independent of the caller")

	op.Complete(model.JSONObject{"response": "ok"})
	require.NoError(t, repo.Update(context.Background(), op))

	stored, err = repo.GetByID(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OperationStatusSuccess, stored.Status)
	assert.Equal(t, "ok", stored.Result["response"])

	missing := model.NewOperation(model.OperationTypeMute, nil)
	assert.ErrorIs(t, repo.Update(context.Background(), missing), ErrNotFound)
	assert.Error(t, repo.Create(context.Background(), op), "duplicate id")
}

func TestMemoryRepositoryFilterAndLimit(t *testing.T) {
	repo := NewMemoryOperationRepository(10)
	ops := createOps(t, repo, 4)
	ops[1].Fail(model.OperationStatusTimeout, "CommandTimeout", errors.New("timed out"))
	require.NoError(t, repo.Update(context.Background(), ops[1]))

	status := model.OperationStatusTimeout
	list, err := repo.ListRecent(context.Background(), &OperationFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ops[1].ID, list[0].ID)
	require.NotNil(t, list[0].ErrorKind)
	assert.Equal(t, "CommandTimeout", *list[0].ErrorKind)

	list, err = repo.ListRecent(context.Background(), &OperationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	opType := model.OperationTypeMute
	list, err = repo.ListRecent(context.Background(), &OperationFilter{OperationType: &opType})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryRepositoryStats(t *testing.T) {
	repo := NewMemoryOperationRepository(10)
	ops := createOps(t, repo, 3)
	ops[0].Complete(nil)
	ops[1].Fail(model.OperationStatusFailed, "NotConnected", errors.New("not connected"))
	require.NoError(t, repo.Update(context.Background(), ops[0]))
	require.NoError(t, repo.Update(context.Background(), ops[1]))

	stats, err := repo.GetOperationStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOperations)
	assert.Equal(t, 1, stats.SuccessfulOps)
	assert.Equal(t, 1, stats.FailedOps)
	assert.Equal(t, 1, stats.PendingOps)
	assert.Equal(t, 3, stats.ByType[model.OperationTypePower])
}

func TestMemoryRepositoryDeleteOlderThan(t *testing.T) {
	repo := NewMemoryOperationRepository(3)
	ops := createOps(t, repo, 5)

	// ring now holds ops 2, 3, 4
	deleted, err := repo.DeleteOlderThan(context.Background(), ops[4].CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	list, err := repo.ListRecent(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ops[4].ID, list[0].ID)

	// further inserts keep working after compaction
	more := createOps(t, repo, 3)
	list, err = repo.ListRecent(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, more[2].ID, list[0].ID)
	_, err = repo.GetByID(context.Background(), ops[4].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

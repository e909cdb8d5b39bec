package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"sevadesk/config"
	"sevadesk/internal/database"
	"sevadesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func setupQueueRepo(t *testing.T) (QueueRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.db")
	db, err := database.New(config.Config{APIBaseURL: "unused", QueueDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewQueueRepository(db), path
}

func queuedOp(key, table string) *models.QueuedOperation {
	return &models.QueuedOperation{
		IdempotencyKey: key,
		Table:          table,
		Verb:           models.OpCreate,
		Payload:        datatypes.JSON([]byte(`{"name":"x"}`)),
	}
}

func TestQueueRepositoryPreservesSubmissionOrder(t *testing.T) {
	repo, _ := setupQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, queuedOp("key-a", "logs")))
	require.NoError(t, repo.Append(ctx, queuedOp("key-b", "services")))
	require.NoError(t, repo.Append(ctx, queuedOp("key-c", "payments")))

	ops, err := repo.OldestFirst(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "key-a", ops[0].IdempotencyKey)
	assert.Equal(t, "key-b", ops[1].IdempotencyKey)
	assert.Equal(t, "key-c", ops[2].IdempotencyKey)
}

func TestQueueRepositoryRemoveOnlyDropsOneRow(t *testing.T) {
	repo, _ := setupQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, queuedOp("key-a", "logs")))
	require.NoError(t, repo.Append(ctx, queuedOp("key-b", "services")))

	ops, err := repo.OldestFirst(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, ops[0].Position))

	remaining, err := repo.OldestFirst(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "key-b", remaining[0].IdempotencyKey)

	// Removing twice is a bug somewhere else; it must surface.
	assert.Error(t, repo.Remove(ctx, ops[0].Position))
}

func TestQueueRepositorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	db, err := database.New(config.Config{APIBaseURL: "unused", QueueDBPath: path})
	require.NoError(t, err)
	repo := NewQueueRepository(db)
	require.NoError(t, repo.Append(ctx, queuedOp("key-a", "logs")))
	require.NoError(t, db.Close())

	reopened, err := database.New(config.Config{APIBaseURL: "unused", QueueDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	ops, err := NewQueueRepository(reopened).OldestFirst(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "key-a", ops[0].IdempotencyKey)
}

func TestQueueRepositoryCount(t *testing.T) {
	repo, _ := setupQueueRepo(t)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.Append(ctx, queuedOp("key-a", "logs")))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

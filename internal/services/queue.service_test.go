package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"sevadesk/internal/models"
	"sevadesk/internal/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func queuedCreate(key, table string, payload string) *models.QueuedOperation {
	return &models.QueuedOperation{
		IdempotencyKey: key,
		Table:          table,
		Verb:           models.OpCreate,
		TargetID:       key,
		Payload:        datatypes.JSON([]byte(payload)),
	}
}

func TestDrainReplaysInSubmissionOrder(t *testing.T) {
	var tables []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tables = append(tables, strings.TrimPrefix(r.URL.Path, "/rest/v1/"))
		echoCreated(t, w, r)
	}))
	defer server.Close()

	gateway, repo := newTestGateway(t, server.URL)
	queue := NewQueueService(repo, gateway)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, queuedCreate("key-a", "logs", `{"id":"key-a"}`)))
	require.NoError(t, repo.Append(ctx, queuedCreate("key-b", "services", `{"id":"key-b"}`)))
	require.NoError(t, repo.Append(ctx, queuedCreate("key-c", "payments", `{"id":"key-c"}`)))

	result, err := queue.Drain(ctx, Session{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Applied)
	assert.Zero(t, result.Remaining)
	assert.Equal(t, []string{"logs", "services", "payments"}, tables)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDrainStopsAtFirstFatalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/services") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		echoCreated(t, w, r)
	}))
	defer server.Close()

	gateway, repo := newTestGateway(t, server.URL)
	queue := NewQueueService(repo, gateway)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, queuedCreate("key-a", "logs", `{"id":"key-a"}`)))
	require.NoError(t, repo.Append(ctx, queuedCreate("key-b", "services", `{"id":"key-b"}`)))
	require.NoError(t, repo.Append(ctx, queuedCreate("key-c", "payments", `{"id":"key-c"}`)))

	result, err := queue.Drain(ctx, Session{})
	require.Error(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.EqualValues(t, 2, result.Remaining)

	// The fatal operation holds its place; nothing behind it jumped it.
	ops, opsErr := repo.OldestFirst(ctx)
	require.NoError(t, opsErr)
	require.Len(t, ops, 2)
	assert.Equal(t, "key-b", ops[0].IdempotencyKey)
	assert.Equal(t, "key-c", ops[1].IdempotencyKey)
}

func TestDrainPausesWhileStillOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	gateway, repo := newTestGateway(t, server.URL)
	queue := NewQueueService(repo, gateway)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, queuedCreate("key-a", "logs", `{"id":"key-a"}`)))

	result, err := queue.Drain(ctx, Session{})

	var fe *syncerr.FinalError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, result.Applied)
	assert.EqualValues(t, 1, result.Remaining)
}

func TestDrainEmptyQueueIsANoOp(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	gateway, repo := newTestGateway(t, server.URL)
	queue := NewQueueService(repo, gateway)

	result, err := queue.Drain(context.Background(), Session{})
	require.NoError(t, err)
	assert.Zero(t, result.Applied)
	assert.Zero(t, requests.Load())
}

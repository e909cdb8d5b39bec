package services

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"sevadesk/config"
	"sevadesk/internal/database"
	"sevadesk/internal/repositories"

	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		APIBaseURL:       baseURL,
		APIKey:           "test-service-key",
		RequestTimeoutMS: 2_000,
		RetryBaseDelayMS: 1,
		RetryMaxDelayMS:  20,
		RetryMaxAttempts: 3,
		SuggestionLimit:  10,
		ReadCacheTTLSec:  30,
	}
}

func newTestGateway(t *testing.T, baseURL string) (*SyncGateway, repositories.QueueRepository) {
	t.Helper()

	cfg := testConfig(baseURL)
	cfg.QueueDBPath = filepath.Join(t.TempDir(), "queue.db")

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repositories.NewQueueRepository(db)
	gateway := NewSyncGateway(cfg, NewTransportClient(cfg), NewRetryPolicy(cfg), repo)
	return gateway, repo
}

// echoCreated replies to a POST the way the remote store does with
// return=representation: the submitted row back, stamped with timestamps,
// wrapped in an array.
func echoCreated(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()

	var row map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&row))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = now
	}
	row["updated_at"] = now

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode([]map[string]any{row}))
}

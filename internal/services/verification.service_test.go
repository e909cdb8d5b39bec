package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sevadesk/internal/events"
	"sevadesk/internal/models"
	"sevadesk/internal/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestionRow(id string, status models.VerificationStatus) map[string]any {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return map[string]any{
		"id":             id,
		"service":        "Aadhaar Seeding",
		"suggested_by":   "staff-1",
		"status":         string(status),
		"created_at":     now,
		"updated_at":     now,
		"schema_version": 1,
	}
}

func newTestVerification(t *testing.T, baseURL string) (*VerificationService, *events.EventBus) {
	t.Helper()

	bus := events.New()
	t.Cleanup(func() { _ = bus.Close() })

	gateway, _ := newTestGateway(t, baseURL)
	return NewVerificationService(gateway, bus), bus
}

func TestApprovePendingSuggestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeRows(t, w, suggestionRow("sug-1", models.StatusPending))
		case http.MethodPatch:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, string(models.StatusApproved), body["status"])
			writeRows(t, w, suggestionRow("sug-1", models.StatusApproved))
		}
	}))
	defer server.Close()

	verification, bus := newTestVerification(t, server.URL)

	var approvedName atomic.Value
	bus.Subscribe(events.SUGGESTION_CHANNEL, func(event events.Event) error {
		if event.Type == events.SUGGESTION_APPROVED {
			approvedName.Store(event.Data["service"].(string))
		}
		return nil
	})

	updated, err := verification.ApproveSuggestion(context.Background(), Session{}, "sug-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	require.Eventually(t, func() bool {
		name, _ := approvedName.Load().(string)
		return name == "Aadhaar Seeding"
	}, time.Second, 5*time.Millisecond)
}

func TestRejectPendingSuggestionRecordsReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeRows(t, w, suggestionRow("sug-1", models.StatusPending))
		case http.MethodPatch:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, string(models.StatusRejected), body["status"])
			assert.Equal(t, "duplicate of Ration Card", body["reason"])

			row := suggestionRow("sug-1", models.StatusRejected)
			row["reason"] = body["reason"]
			writeRows(t, w, row)
		}
	}))
	defer server.Close()

	verification, _ := newTestVerification(t, server.URL)

	updated, err := verification.RejectSuggestion(context.Background(), Session{}, "sug-1", "duplicate of Ration Card")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
	assert.Equal(t, "duplicate of Ration Card", updated.Reason)
}

func TestTerminalStatesRefuseFurtherTransitions(t *testing.T) {
	for _, terminal := range []models.VerificationStatus{models.StatusApproved, models.StatusRejected} {
		t.Run(string(terminal), func(t *testing.T) {
			var patches atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					writeRows(t, w, suggestionRow("sug-1", terminal))
				case http.MethodPatch:
					patches.Add(1)
					writeRows(t, w)
				}
			}))
			defer server.Close()

			verification, _ := newTestVerification(t, server.URL)

			_, err := verification.ApproveSuggestion(context.Background(), Session{}, "sug-1")

			var invalid *syncerr.InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, string(terminal), invalid.From)
			assert.Zero(t, patches.Load(), "terminal states must never produce a write")
		})
	}
}

func TestConcurrentDecisionSurfacesConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeRows(t, w, suggestionRow("sug-1", models.StatusPending))
		case http.MethodPatch:
			// Another admin decided first; the precondition matches nothing.
			writeRows(t, w)
		}
	}))
	defer server.Close()

	verification, _ := newTestVerification(t, server.URL)

	_, err := verification.ApproveSuggestion(context.Background(), Session{}, "sug-1")

	var conflict *syncerr.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCheckTransitionTable(t *testing.T) {
	assert.NoError(t, checkTransition(models.StatusPending, models.StatusApproved))
	assert.NoError(t, checkTransition(models.StatusPending, models.StatusRejected))

	assert.Error(t, checkTransition(models.StatusApproved, models.StatusRejected))
	assert.Error(t, checkTransition(models.StatusRejected, models.StatusApproved))
	assert.Error(t, checkTransition(models.StatusPending, models.StatusPending))
}

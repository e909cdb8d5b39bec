package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"sevadesk/internal/syncerr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSetsAuthAndPreferHeaders(t *testing.T) {
	var captured http.Header
	var capturedMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		capturedMethod = r.Method
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewTransportClient(testConfig(server.URL))
	_, err := client.Execute(context.Background(), Session{AccessToken: "staff-token"}, Request{
		Method:         http.MethodPost,
		Table:          "logs",
		Body:           map[string]any{"name": "x"},
		IdempotencyKey: "key-1",
	})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, capturedMethod)
	assert.Equal(t, "test-service-key", captured.Get("apikey"))
	assert.Equal(t, "Bearer staff-token", captured.Get("Authorization"))
	assert.Equal(t, "return=representation", captured.Get("Prefer"))
	assert.Equal(t, "key-1", captured.Get("Idempotency-Key"))
}

func TestExecuteFallsBackToServiceKeyWithoutSession(t *testing.T) {
	var captured http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewTransportClient(testConfig(server.URL))
	_, err := client.Execute(context.Background(), Session{}, Request{
		Method: http.MethodGet,
		Table:  "logs",
		Query:  url.Values{"id": []string{"eq.1"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-service-key", captured.Get("Authorization"))
	assert.Empty(t, captured.Get("Prefer"))
}

func TestExecuteClassifiesServerStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      syncerr.TransportKind
		retryable bool
	}{
		{"server fault is transient", http.StatusInternalServerError, syncerr.TransportServerError, true},
		{"gateway timeout is transient", http.StatusGatewayTimeout, syncerr.TransportServerError, true},
		{"rejected payload is fatal", http.StatusUnprocessableEntity, syncerr.TransportServerError, false},
		{"auth failure is fatal", http.StatusUnauthorized, syncerr.TransportUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewTransportClient(testConfig(server.URL))
			_, err := client.Execute(context.Background(), Session{}, Request{
				Method: http.MethodGet,
				Table:  "logs",
			})

			var te *syncerr.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.status, te.Status)
			assert.Equal(t, tt.retryable, te.Retryable())
		})
	}
}

func TestExecuteClassifiesRefusedConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := NewTransportClient(testConfig(server.URL))
	_, err := client.Execute(context.Background(), Session{}, Request{
		Method: http.MethodGet,
		Table:  "logs",
	})

	var te *syncerr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, syncerr.TransportConnectionRefused, te.Kind)
	assert.True(t, te.Retryable())
}

func TestExecuteFailsFastOnExpiredToken(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	client := NewTransportClient(testConfig(server.URL))
	_, err = client.Execute(context.Background(), Session{AccessToken: expired}, Request{
		Method: http.MethodGet,
		Table:  "logs",
	})

	require.ErrorIs(t, err, syncerr.ErrUnauthorized)
	assert.Zero(t, requests.Load(), "an expired token must not reach the network")
}

func TestPingTreatsAnyResponseAsOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewTransportClient(testConfig(server.URL))
	assert.NoError(t, client.Ping(context.Background()))

	server.Close()
	assert.Error(t, client.Ping(context.Background()))
}

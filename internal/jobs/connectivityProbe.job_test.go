package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sevadesk/config"
	"sevadesk/internal/events"
	"sevadesk/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu    sync.Mutex
	types []events.MessageType
}

func (r *eventRecorder) record(event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.Type)
	return nil
}

func (r *eventRecorder) snapshot() []events.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.MessageType(nil), r.types...)
}

func probeConfig(baseURL string) config.Config {
	return config.Config{
		APIBaseURL:       baseURL,
		APIKey:           "test-service-key",
		RequestTimeoutMS: 500,
	}
}

func TestProbePublishesOnlyEdges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	bus := events.New()
	t.Cleanup(func() { _ = bus.Close() })

	recorder := &eventRecorder{}
	bus.Subscribe(events.CONNECTIVITY_CHANNEL, recorder.record)

	probe := NewConnectivityProbeJob(
		services.NewTransportClient(probeConfig(server.URL)),
		bus,
		services.EverySeconds(20),
	)
	ctx := context.Background()

	// First probe establishes the state, repeats stay silent.
	require.NoError(t, probe.Execute(ctx))
	require.NoError(t, probe.Execute(ctx))
	require.NoError(t, probe.Execute(ctx))
	assert.True(t, probe.Online())

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, events.ONLINE, recorder.snapshot()[0])

	// Losing the server is an edge again.
	server.Close()
	require.NoError(t, probe.Execute(ctx))
	require.NoError(t, probe.Execute(ctx))
	assert.False(t, probe.Online())

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, events.OFFLINE, recorder.snapshot()[1])
}

func TestProbeScheduleComesFromConfig(t *testing.T) {
	probe := NewConnectivityProbeJob(
		services.NewTransportClient(probeConfig("http://localhost:1")),
		events.New(),
		services.EverySeconds(20),
	)

	assert.Equal(t, "ConnectivityProbe", probe.Name())
	assert.Equal(t, 20*time.Second, probe.Schedule().Interval)
}

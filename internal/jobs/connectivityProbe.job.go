package jobs

import (
	"context"
	"sync"

	"sevadesk/internal/events"
	"sevadesk/internal/logger"
	"sevadesk/internal/services"
)

// ConnectivityProbeJob pings the remote store on a short interval and
// publishes edge-triggered online/offline events. Only transitions are
// published, so a flaky morning does not spam every subscriber with
// thousands of identical messages.
type ConnectivityProbeJob struct {
	transport *services.TransportClient
	events    *events.EventBus
	log       logger.Logger
	schedule  services.Schedule

	mu     sync.Mutex
	online bool
	probed bool
}

func NewConnectivityProbeJob(
	transport *services.TransportClient,
	eventBus *events.EventBus,
	schedule services.Schedule,
) *ConnectivityProbeJob {
	return &ConnectivityProbeJob{
		transport: transport,
		events:    eventBus,
		log:       logger.New("connectivityProbeJob"),
		schedule:  schedule,
	}
}

func (j *ConnectivityProbeJob) Name() string {
	return "ConnectivityProbe"
}

func (j *ConnectivityProbeJob) Schedule() services.Schedule {
	return j.schedule
}

func (j *ConnectivityProbeJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	err := j.transport.Ping(ctx)
	online := err == nil

	j.mu.Lock()
	changed := !j.probed || online != j.online
	j.online = online
	j.probed = true
	j.mu.Unlock()

	if !changed {
		return nil
	}

	if online {
		log.Info("Server reachable, going online")
	} else {
		log.Warn("Server unreachable, going offline", "cause", err)
	}
	j.events.PublishConnectivity(online)
	return nil
}

// Online reports the last probed state.
func (j *ConnectivityProbeJob) Online() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.online
}

package jobs

import (
	"context"

	"sevadesk/config"
	"sevadesk/internal/events"
	"sevadesk/internal/logger"
	"sevadesk/internal/services"
)

// RegisterAllJobs wires the background jobs onto the scheduler and hooks
// the queue drain to connectivity edges: the moment the probe sees the
// server again, buffered operations start replaying.
func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	cfg config.Config,
	svcs services.Service,
	eventBus *events.EventBus,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")
	log.Info("Registering jobs")

	if cfg.ProbeEnabled {
		probeJob := NewConnectivityProbeJob(
			svcs.Transport,
			eventBus,
			services.EverySeconds(cfg.ProbeIntervalSec),
		)
		if err := schedulerService.AddJob(probeJob); err != nil {
			return log.Err("failed to register connectivity probe job", err)
		}
	}

	refreshJob := NewSuggestionRefreshJob(
		svcs.Gateway,
		svcs.Suggest,
		eventBus,
		services.DailyAt("02:00"),
	)
	if err := schedulerService.AddJob(refreshJob); err != nil {
		return log.Err("failed to register suggestion refresh job", err)
	}

	eventBus.Subscribe(events.CONNECTIVITY_CHANNEL, func(event events.Event) error {
		if event.Type != events.ONLINE {
			return nil
		}
		result, err := svcs.Queue.Drain(context.Background(), services.Session{})
		if err != nil {
			return log.Err("queue drain after reconnect failed", err,
				"applied", result.Applied, "remaining", result.Remaining)
		}
		return nil
	})

	return nil
}

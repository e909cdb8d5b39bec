package services

import (
	"sevadesk/config"
	"sevadesk/internal/database"
	"sevadesk/internal/events"
	"sevadesk/internal/repositories"
)

type Service struct {
	Transport    *TransportClient
	Retry        *RetryPolicy
	Gateway      *SyncGateway
	Queue        *QueueService
	Suggest      *SuggestService
	Verification *VerificationService
	Intake       *IntakeService
	Scheduler    *SchedulerService
}

func New(db database.DB, cfg config.Config, eventBus *events.EventBus) (Service, error) {
	repos := repositories.New(db)

	transport := NewTransportClient(cfg)
	retry := NewRetryPolicy(cfg)
	gateway := NewSyncGateway(cfg, transport, retry, repos.Queue)
	queueService := NewQueueService(repos.Queue, gateway)
	suggestService := NewSuggestService(cfg, eventBus)
	verificationService := NewVerificationService(gateway, eventBus)
	intakeService := NewIntakeService(gateway, suggestService)
	schedulerService := NewSchedulerService()

	return Service{
		Transport:    transport,
		Retry:        retry,
		Gateway:      gateway,
		Queue:        queueService,
		Suggest:      suggestService,
		Verification: verificationService,
		Intake:       intakeService,
		Scheduler:    schedulerService,
	}, nil
}

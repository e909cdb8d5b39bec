package app

import (
	"context"

	"sevadesk/config"
	"sevadesk/internal/database"
	"sevadesk/internal/events"
	"sevadesk/internal/jobs"
	"sevadesk/internal/logger"
	"sevadesk/internal/repositories"
	"sevadesk/internal/services"
)

// App owns the assembled sync core: local database, event bus,
// repositories, services and the background scheduler. Construction is
// strictly bottom-up and fails fast; a partially wired app never leaves
// New.
type App struct {
	Database database.DB
	EventBus *events.EventBus
	Config   config.Config

	Services     services.Service
	Repositories repositories.Repository
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	cfg, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return &App{}, log.Err("failed to open local database", err)
	}

	eventBus := events.New()
	repos := repositories.New(db)

	svcs, err := services.New(db, cfg, eventBus)
	if err != nil {
		return &App{}, log.Err("failed to create services", err)
	}

	if cfg.SchedulerEnabled {
		if err := jobs.RegisterAllJobs(svcs.Scheduler, cfg, svcs, eventBus); err != nil {
			return &App{}, log.Err("failed to register jobs", err)
		}
	}

	app := &App{
		Database:     db,
		EventBus:     eventBus,
		Config:       cfg,
		Services:     svcs,
		Repositories: repos,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}
	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.EventBus,
		a.Services.Transport,
		a.Services.Retry,
		a.Services.Gateway,
		a.Services.Queue,
		a.Services.Suggest,
		a.Services.Verification,
		a.Services.Intake,
		a.Services.Scheduler,
		a.Repositories.Queue,
	}
	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

// Start brings up the background machinery: the scheduler, an immediate
// connectivity check, and an initial drain plus index load when the
// server is reachable.
func (a *App) Start(ctx context.Context) error {
	log := logger.New("app").Function("Start")

	if a.Config.SchedulerEnabled {
		if err := a.Services.Scheduler.Start(ctx); err != nil {
			return log.Err("failed to start scheduler", err)
		}
	}

	if err := a.Services.Transport.Ping(ctx); err != nil {
		log.Warn("Server unreachable at startup, staying offline", "cause", err)
		return nil
	}

	if a.Config.DrainOnStart {
		result, err := a.Services.Queue.Drain(ctx, services.Session{})
		if err != nil {
			log.Er("startup drain failed", err,
				"applied", result.Applied, "remaining", result.Remaining)
		}
	}

	a.EventBus.PublishConnectivity(true)
	a.EventBus.Publish(events.SUGGESTION_CHANNEL, events.Event{Type: events.INDEX_REFRESH_NEEDED})
	return nil
}

func (a *App) Close() (err error) {
	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sevadesk/internal/app"
	"sevadesk/internal/logger"
)

func gracefulShutdown(app *app.App, done chan bool, log logger.Logger) {
	log = log.Function("gracefulShutdown")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.Services.Scheduler.Stop(ctx); err != nil {
		log.Er("failed to stop scheduler", err)
	}

	log.Info("Sync core exiting")
	done <- true
}

func main() {
	log := logger.New("main")

	app, err := app.New()
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Er("failed to close app", err)
		}
	}()

	done := make(chan bool, 1)

	go func() {
		if err := app.Start(context.Background()); err != nil {
			log.Er("failed to start sync core", err)
			os.Exit(1)
		}
	}()

	go gracefulShutdown(app, done, log)

	<-done
	log.Info("Graceful shutdown complete.")
}

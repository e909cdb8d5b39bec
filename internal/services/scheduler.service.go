package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sevadesk/internal/logger"

	"github.com/go-co-op/gocron"
)

// Schedule describes when a job runs. At pins the job to a daily UTC
// time; otherwise it fires every Interval.
type Schedule struct {
	Interval time.Duration
	At       string
}

// EverySeconds builds an interval schedule, the common case for the
// connectivity probe.
func EverySeconds(n int) Schedule {
	return Schedule{Interval: time.Duration(n) * time.Second}
}

// DailyAt pins a job to a fixed UTC time, "02:00" style.
func DailyAt(at string) Schedule {
	return Schedule{At: at}
}

// Job is a scheduled task.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
	Schedule() Schedule
}

type SchedulerService struct {
	scheduler *gocron.Scheduler
	jobs      []Job
	log       logger.Logger
	started   bool
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewSchedulerService() *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())

	return &SchedulerService{
		scheduler: gocron.NewScheduler(time.UTC),
		jobs:      make([]Job, 0),
		log:       logger.New("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *SchedulerService) executeJob(job Job, log logger.Logger) {
	log.Debug("Executing scheduled job", "job", job.Name())
	if err := job.Execute(s.ctx); err != nil {
		_ = log.Err("Job execution failed", err, "job", job.Name())
	}
}

// AddJob registers a job with the scheduler.
func (s *SchedulerService) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("AddJob")

	schedule := job.Schedule()
	var err error
	switch {
	case schedule.At != "":
		_, err = s.scheduler.Every(1).Day().At(schedule.At).Do(func() {
			s.executeJob(job, log)
		})
	case schedule.Interval > 0:
		_, err = s.scheduler.Every(schedule.Interval).Do(func() {
			s.executeJob(job, log)
		})
	default:
		err = fmt.Errorf("job %s has an empty schedule", job.Name())
	}

	if err != nil {
		return log.Err("failed to register job with scheduler", err, "job", job.Name())
	}

	s.jobs = append(s.jobs, job)
	log.Info("Job registered successfully", "job", job.Name())
	return nil
}

// Start begins the scheduler.
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Start")

	if s.started {
		log.Info("Scheduler already started")
		return nil
	}

	if len(s.jobs) == 0 {
		log.Info("No jobs registered, scheduler will not start")
		return nil
	}

	log.Info("Starting scheduler", "jobCount", len(s.jobs))
	s.scheduler.StartAsync()
	s.started = true

	for _, scheduled := range s.scheduler.Jobs() {
		log.Info("Job scheduled", "nextRun", scheduled.NextRun())
	}
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Stop")

	if !s.started {
		log.Info("Scheduler not started, nothing to stop")
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.scheduler.Stop()
	s.started = false

	log.Info("Scheduler stopped")
	return nil
}

func (s *SchedulerService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *SchedulerService) GetJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// TriggerJobByName runs a registered job immediately, off-schedule. Used
// for the manual "check connection now" action.
func (s *SchedulerService) TriggerJobByName(ctx context.Context, jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("TriggerJobByName")

	var targetJob Job
	for _, job := range s.jobs {
		if job.Name() == jobName {
			targetJob = job
			break
		}
	}

	if targetJob == nil {
		return log.Error("job not found", "job", jobName)
	}

	go func() {
		log.Info("Manually triggering job", "job", jobName)
		if err := targetJob.Execute(ctx); err != nil {
			_ = log.Err("Manual job execution failed", err, "job", jobName)
		}
	}()

	return nil
}

package services

import (
	"context"
	"sync"

	"sevadesk/internal/logger"
	"sevadesk/internal/repositories"
	"sevadesk/internal/syncerr"
)

// QueueService drains the durable offline queue against the live server.
// Replay is strictly FIFO and stops at the first failure: a transient one
// means the server is still unreachable and the whole tail can wait, a
// fatal one means the head operation needs human attention and nothing
// behind it may jump the line.
type QueueService struct {
	repo    repositories.QueueRepository
	gateway *SyncGateway
	log     logger.Logger

	mu sync.Mutex // one drain at a time
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Applied   int
	Remaining int64
}

func NewQueueService(repo repositories.QueueRepository, gateway *SyncGateway) *QueueService {
	return &QueueService{
		repo:    repo,
		gateway: gateway,
		log:     logger.New("QueueService"),
	}
}

// Depth reports how many operations are waiting to replay.
func (s *QueueService) Depth(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Drain replays queued operations oldest first, removing each only after
// the server confirms it. On failure the offending operation stays at the
// head and the pass ends; the returned result still reflects everything
// applied before the stop.
func (s *QueueService) Drain(ctx context.Context, session Session) (DrainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Drain")

	ops, err := s.repo.OldestFirst(ctx)
	if err != nil {
		return DrainResult{}, err
	}
	if len(ops) == 0 {
		return DrainResult{}, nil
	}

	log.Info("Draining offline queue", "pending", len(ops))

	var result DrainResult
	var stopErr error
	for _, op := range ops {
		if err := s.gateway.Replay(ctx, session, op); err != nil {
			if syncerr.IsFatalForReplay(err) {
				log.Er("Queued operation failed fatally, stopping drain", err,
					"position", op.Position, "table", op.Table, "verb", op.Verb)
			} else {
				log.Warn("Server still unreachable, pausing drain",
					"position", op.Position, "table", op.Table)
			}
			stopErr = err
			break
		}

		if err := s.repo.Remove(ctx, op.Position); err != nil {
			// The server applied it; a remove failure must not replay it
			// again this pass.
			stopErr = err
			break
		}
		result.Applied++
	}

	remaining, countErr := s.repo.Count(ctx)
	if countErr == nil {
		result.Remaining = remaining
	}

	if result.Applied > 0 {
		log.Info("Drain pass finished", "applied", result.Applied, "remaining", result.Remaining)
	}
	return result, stopErr
}

package repositories

import (
	"context"

	"sevadesk/internal/database"
	"sevadesk/internal/logger"
	. "sevadesk/internal/models"
)

// QueueRepository persists buffered mutations. Rows are only ever appended
// at the tail and removed at the head after a confirmed replay, so the
// sqlite rowid gives us submission order for free.
type QueueRepository interface {
	Append(ctx context.Context, op *QueuedOperation) error
	OldestFirst(ctx context.Context) ([]QueuedOperation, error)
	Remove(ctx context.Context, position uint) error
	Count(ctx context.Context) (int64, error)
}

type queueRepository struct {
	db  database.DB
	log logger.Logger
}

func NewQueueRepository(db database.DB) QueueRepository {
	return &queueRepository{
		db:  db,
		log: logger.New("queueRepository"),
	}
}

func (r *queueRepository) Append(ctx context.Context, op *QueuedOperation) error {
	log := r.log.Function("Append")

	if err := r.db.SQL.WithContext(ctx).Create(op).Error; err != nil {
		return log.Err("failed to append queued operation", err,
			"table", op.Table, "idempotencyKey", op.IdempotencyKey)
	}

	log.Info("Operation queued", "table", op.Table, "verb", op.Verb, "position", op.Position)
	return nil
}

func (r *queueRepository) OldestFirst(ctx context.Context) ([]QueuedOperation, error) {
	log := r.log.Function("OldestFirst")

	var ops []QueuedOperation
	if err := r.db.SQL.WithContext(ctx).Order("position asc").Find(&ops).Error; err != nil {
		return nil, log.Err("failed to load queued operations", err)
	}

	return ops, nil
}

func (r *queueRepository) Remove(ctx context.Context, position uint) error {
	log := r.log.Function("Remove")

	result := r.db.SQL.WithContext(ctx).Delete(&QueuedOperation{}, "position = ?", position)
	if result.Error != nil {
		return log.Err("failed to remove queued operation", result.Error, "position", position)
	}
	if result.RowsAffected == 0 {
		return log.Error("queued operation already removed", "position", position)
	}

	return nil
}

func (r *queueRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.SQL.WithContext(ctx).Model(&QueuedOperation{}).Count(&count).Error; err != nil {
		return 0, r.log.Function("Count").Err("failed to count queued operations", err)
	}
	return count, nil
}

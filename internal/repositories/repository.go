package repositories

import (
	"sevadesk/internal/database"
)

type Repository struct {
	Queue QueueRepository
}

func New(db database.DB) Repository {
	return Repository{
		Queue: NewQueueRepository(db),
	}
}

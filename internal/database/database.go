// Package database owns the local sqlite store backing the offline queue.
// The remote Postgres lives behind its REST API and is never reached from
// here; this file is only the client-side durable state.
package database

import (
	"log/slog"
	"time"

	"sevadesk/config"
	"sevadesk/internal/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type DB struct {
	SQL *gorm.DB
	log logger.Logger
}

func New(config config.Config) (DB, error) {
	log := logger.New("database").Function("New")

	log.Info("Initializing local database", "path", config.QueueDBPath)
	db := &DB{log: log}

	if err := db.initializeDB(config); err != nil {
		return DB{}, log.Err("failed to initialize local database", err)
	}

	if err := db.MigrateModels(); err != nil {
		return DB{}, log.Err("failed to migrate local database", err)
	}

	return *db, nil
}

func (s *DB) initializeDB(config config.Config) error {
	log := s.log.Function("initializeDB")

	gormLog := gormLogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)

	gormConfig := &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
	}

	db, err := gorm.Open(sqlite.Open(config.QueueDBPath), gormConfig)
	if err != nil {
		return log.Err("failed to open sqlite store", err, "path", config.QueueDBPath)
	}

	// Single writer: the queue serializes its own access, and sqlite locks
	// the file anyway. One connection keeps WAL bookkeeping simple.
	sqlDB, err := db.DB()
	if err != nil {
		return log.Err("failed to access underlying sql.DB", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s.SQL = db
	log.Info("Local database ready", "path", config.QueueDBPath)
	return nil
}

func (s *DB) Close() error {
	log := s.log.Function("Close")

	if s.SQL == nil {
		return nil
	}

	sqlDB, err := s.SQL.DB()
	if err != nil {
		return log.Err("failed to access underlying sql.DB", err)
	}

	if err := sqlDB.Close(); err != nil {
		return log.Err("failed to close local database", err)
	}

	log.Info("Local database closed")
	return nil
}

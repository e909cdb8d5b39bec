package database

import (
	"sevadesk/internal/logger"
	"sevadesk/internal/models"
)

// MigrateModels runs GORM AutoMigrate for all locally persisted models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting local database migration")

	modelsToMigrate := []interface{}{
		&models.QueuedOperation{},
	}

	for _, model := range modelsToMigrate {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("failed to migrate model", err, "model", model)
		}
	}

	log.Info("Local database migration completed successfully")
	return nil
}

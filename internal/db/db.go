// Package db opens the configured database and migrates the schema.
package db

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/db/dsn"
	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/logger"
	"github.com/voxguild/permengine/internal/logger/adapter/gormlogger"
)

// memory is the sqlite path for a per-connection in-memory database.
const memory = ":memory:"

// Open connects to cfg.Engine and applies the pool settings.
// An in-memory sqlite database is pinned to one connection so every query sees the same data.
func Open(cfg config.DB, logCfg logger.SQL) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Engine {
	case config.EngineMySQL:
		dialector = mysql.Open(dsn.Create(cfg))
	case config.EnginePostgres:
		dialector = postgres.Open(dsn.Create(cfg))
	case config.EngineSQLite:
		dialector = sqlite.Open(dsn.Create(cfg))
	default:
		return nil, errors.Wrap(config.ErrUnknownDBEngine, cfg.Engine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.New(log.Logger, logCfg),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get connection pool")
	}

	switch {
	case cfg.Engine == config.EngineSQLite && cfg.Path == memory:
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	log.Info().Str("engine", cfg.Engine).Msg("database connected")

	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get connection pool")
	}

	return errors.Wrap(sqlDB.Close(), "failed to close database")
}

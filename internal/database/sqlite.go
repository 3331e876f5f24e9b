package database

import (
	"errors"
	"fmt"
	"strings"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrStorageUnavailable indicates that the storage engine could not be opened.
var ErrStorageUnavailable = errors.New("database: storage unavailable")

// Config names the database file and the schema version it must carry.
type Config struct {
	Path    string
	Name    string
	Version int
}

// OpenSQLite establishes a SQLite connection and runs the schema-setup steps
// required to bring the named store up to the configured version.
func OpenSQLite(cfg Config, zapLogger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: database path is required", ErrStorageUnavailable)
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: database name is required", ErrStorageUnavailable)
	}
	if cfg.Version <= 0 {
		return nil, fmt.Errorf("%w: database version must be positive, got %d", ErrStorageUnavailable, cfg.Version)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := upgradeSchema(db, cfg.Name, cfg.Version, zapLogger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if zapLogger != nil {
		zapLogger.Info("database initialized",
			zap.String("path", cfg.Path),
			zap.String("name", cfg.Name),
			zap.Int("version", cfg.Version))
	}

	return db, nil
}

// Package repo is the record store: gorm models, connection setup and the
// lookups the core consumes (subscription plans, diagrams, component
// catalog).
package repo

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	Driver string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"DATABASE_DSN" default:"file:wiresense.db?_busy_timeout=5000"`
}

// Connect opens a gorm connection for the configured driver.
func Connect(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect (%s): %w", cfg.Driver, err)
	}
	return db, nil
}

// AllModels returns every model for migration.
func AllModels() []any {
	return []any{
		&UsageEvent{},
		&Subscription{},
		&Diagram{},
		&DiagramComponent{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

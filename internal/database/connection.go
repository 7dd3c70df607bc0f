// internal/database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"comport-service/internal/config"
)

const pingTimeout = 5 * time.Second

// DB wraps the port history connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewConnection opens the pool and verifies connectivity
func NewConnection(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.HealthCheck(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)
	return db, nil
}

// HealthCheck pings the database
func (db *DB) HealthCheck() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// GetStats returns the pool statistics
func (db *DB) GetStats() sql.DBStats {
	if db == nil || db.DB == nil {
		return sql.DBStats{}
	}
	return db.Stats()
}

// Close closes the pool
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	db.logger.Info("Closing database connection")
	return db.DB.Close()
}

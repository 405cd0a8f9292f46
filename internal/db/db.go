// Package db manages the optional PostgreSQL connection used for durable
// checkpoint and credential storage.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/eshanized/ERPCT/pkg/debug"
)

// DB wraps the SQL connection pool.
type DB struct {
	*sql.DB
}

// Connect opens a PostgreSQL connection pool and verifies it with a ping,
// retrying briefly so the server can start alongside the database.
func Connect(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	var pingErr error
	for attempt := 1; attempt <= 5; attempt++ {
		pingErr = sqlDB.Ping()
		if pingErr == nil {
			debug.Info("Connected to database")
			return &DB{sqlDB}, nil
		}
		debug.Warning("Database ping failed (attempt %d/5): %v", attempt, pingErr)
		time.Sleep(time.Duration(attempt) * time.Second)
	}

	sqlDB.Close()
	return nil, fmt.Errorf("failed to connect to database: %w", pingErr)
}

// Wrap adapts an existing sql.DB, used by tests with a mock connection.
func Wrap(sqlDB *sql.DB) *DB {
	return &DB{sqlDB}
}

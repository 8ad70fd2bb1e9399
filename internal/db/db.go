// Package db opens the local projection cache.
package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Connect opens the cache database and applies migrations. An empty dsn with
// the sqlite driver keeps the cache in memory.
func Connect(driver, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps one in-memory database and serializes writers
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("cache migrations applied", zap.String("driver", driver), zap.Bool("memory", strings.Contains(dsn, ":memory:")))
	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
            id BIGINT PRIMARY KEY,
            position INTEGER NOT NULL,
            payload TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGINT PRIMARY KEY,
            chat_id BIGINT NOT NULL,
            created_at BIGINT NOT NULL,
            payload TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

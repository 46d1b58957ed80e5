package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const memoryPath = ":memory:"

// DB is the embedded SQLite booking store.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
	now    func() time.Time
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if path == memoryPath {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized successfully")

	return &DB{DB: sqlDB, path: path, logger: logger, now: time.Now}, nil
}

func dsn(path string) string {
	if path == memoryPath {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			date TEXT NOT NULL,
			timeslot TEXT NOT NULL,
			contact_name TEXT NOT NULL,
			contact_email TEXT NOT NULL,
			company TEXT NOT NULL,
			vat TEXT NOT NULL,
			truck_plate TEXT NOT NULL,
			reload_city TEXT NOT NULL DEFAULT '',
			new_truck_number TEXT NOT NULL DEFAULT '',
			UNIQUE (date, timeslot)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the file the store was opened on.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

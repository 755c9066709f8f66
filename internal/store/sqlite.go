package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite is the file-backed Store used by the default deployment.
//
// SQLite supports one writer at a time. A single connection plus a write
// mutex serializes all write transactions so the two pollers, the dispatcher
// and the command surface never trip over "cannot start a transaction within
// a transaction".
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// OpenSQLite opens the database at path with WAL mode and foreign keys
// enabled, and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	s := &SQLite{conn: conn}
	if err := s.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("Connected to SQLite database: %s", path)
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Ping verifies database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// beginWrite acquires the write mutex and opens a transaction. The returned
// release func must be deferred; it unlocks after the transaction is done.
func (s *SQLite) beginWrite(ctx context.Context) (*sql.Tx, func(), error) {
	s.writeMu.Lock()
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		s.writeMu.Unlock()
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, func() {
		tx.Rollback()
		s.writeMu.Unlock()
	}, nil
}

// SQLite stores timestamps as RFC3339 UTC strings.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

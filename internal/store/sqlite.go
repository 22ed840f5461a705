package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"roulette/internal/domain"
)

// sqliteSchemaVersion is the current schema version of the embedded database
const sqliteSchemaVersion = 1

// OpenSQLite opens (or creates) a SQLite database at path and applies migrations.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open: create db dir: %w", err)
	}

	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of the picture
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}

	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: migrate: %w", err)
	}

	return db, nil
}

// migrateSQLite ensures the records table exists at sqliteSchemaVersion
func migrateSQLite(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			word_a TEXT NOT NULL,
			word_b TEXT NOT NULL,
			word_c TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create records table: %w", err)
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at, seq);`); err != nil {
		return fmt.Errorf("migrate: create idx_records_created_at: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, sqliteSchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}

// SQLiteGateway stores records in an embedded SQLite file
type SQLiteGateway struct {
	db       *sql.DB
	notifier Notifier
	fan      *fanout
	logger   zerolog.Logger
}

// NewSQLiteGateway builds a gateway over an open database. The gateway owns
// db and notifier and closes both.
func NewSQLiteGateway(db *sql.DB, notifier Notifier, opts Options, logger zerolog.Logger) *SQLiteGateway {
	logger = logger.With().Str("component", "sqlite_store").Logger()
	g := &SQLiteGateway{
		db:       db,
		notifier: notifier,
		logger:   logger,
	}
	g.fan = newFanout(g.List, notifier, opts, logger)
	return g
}

// Subscribe implements Gateway
func (g *SQLiteGateway) Subscribe(ctx context.Context) (*Subscription, error) {
	sub, err := g.fan.subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sub, nil
}

// Insert implements Gateway
func (g *SQLiteGateway) Insert(ctx context.Context, draft domain.Draft) (domain.RecordEntry, error) {
	rec := domain.RecordEntry{
		ID:   uuid.New().String(),
		Name: draft.Name,
		A:    draft.A,
		B:    draft.B,
		C:    draft.C,
	}

	var createdAt string
	err := g.db.QueryRowContext(ctx, `
		INSERT INTO records (id, name, word_a, word_b, word_c, created_at)
		VALUES (?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		RETURNING seq, created_at
	`, rec.ID, rec.Name, rec.A, rec.B, rec.C).Scan(&rec.Seq, &createdAt)
	if err != nil {
		return domain.RecordEntry{}, fmt.Errorf("insert record: %w", err)
	}

	rec.Timestamp, err = parseSQLiteTime(createdAt)
	if err != nil {
		return domain.RecordEntry{}, fmt.Errorf("insert record: %w", err)
	}

	g.publish(ctx)
	return rec, nil
}

// Delete implements Gateway
func (g *SQLiteGateway) Delete(ctx context.Context, id string) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		g.publish(ctx)
	}
	return nil
}

// List implements Gateway
func (g *SQLiteGateway) List(ctx context.Context) (domain.Snapshot, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT seq, id, name, word_a, word_b, word_c, created_at
		FROM records
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	snap := domain.Snapshot{}
	for rows.Next() {
		var rec domain.RecordEntry
		var createdAt string
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.Name, &rec.A, &rec.B, &rec.C, &createdAt); err != nil {
			return nil, fmt.Errorf("list records: scan: %w", err)
		}
		if rec.Timestamp, err = parseSQLiteTime(createdAt); err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		snap = append(snap, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: rows: %w", err)
	}
	return snap, nil
}

// Close implements Gateway
func (g *SQLiteGateway) Close() error {
	g.fan.close()
	if err := g.notifier.Close(); err != nil {
		g.logger.Warn().Err(err).Msg("failed to close notifier")
	}
	return g.db.Close()
}

func (g *SQLiteGateway) publish(ctx context.Context) {
	if err := g.notifier.Publish(ctx); err != nil {
		g.logger.Error().Err(err).Msg("failed to publish change")
	}
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

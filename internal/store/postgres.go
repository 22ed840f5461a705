package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"roulette/internal/domain"
)

// postgresMigrations are applied in order on every start; each is idempotent
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS records (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		word_a TEXT NOT NULL,
		word_b TEXT NOT NULL,
		word_c TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_created_at ON records (created_at DESC, seq DESC)`,
	`CREATE OR REPLACE FUNCTION notify_records_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + ChangeChannel + `', TG_OP);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS records_changed ON records`,
	`CREATE TRIGGER records_changed
		AFTER INSERT OR UPDATE OR DELETE ON records
		FOR EACH STATEMENT EXECUTE FUNCTION notify_records_changed()`,
}

// ConnectPostgres opens a pool to dsn, checks it and applies the schema
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range postgresMigrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}

// PostgresGateway stores records in Postgres. Ids and timestamps come from
// column defaults.
type PostgresGateway struct {
	pool     *pgxpool.Pool
	notifier Notifier
	fan      *fanout
	logger   zerolog.Logger
}

// NewPostgresGateway builds a gateway over pool. The gateway owns pool and
// notifier and closes both.
func NewPostgresGateway(pool *pgxpool.Pool, notifier Notifier, opts Options, logger zerolog.Logger) *PostgresGateway {
	logger = logger.With().Str("component", "postgres_store").Logger()
	g := &PostgresGateway{
		pool:     pool,
		notifier: notifier,
		logger:   logger,
	}
	g.fan = newFanout(g.List, notifier, opts, logger)
	return g
}

// Subscribe implements Gateway
func (g *PostgresGateway) Subscribe(ctx context.Context) (*Subscription, error) {
	sub, err := g.fan.subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sub, nil
}

// Insert implements Gateway
func (g *PostgresGateway) Insert(ctx context.Context, draft domain.Draft) (domain.RecordEntry, error) {
	rec := domain.RecordEntry{
		Name: draft.Name,
		A:    draft.A,
		B:    draft.B,
		C:    draft.C,
	}

	err := g.pool.QueryRow(ctx, `
		INSERT INTO records (name, word_a, word_b, word_c)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, seq, created_at
	`, rec.Name, rec.A, rec.B, rec.C).Scan(&rec.ID, &rec.Seq, &rec.Timestamp)
	if err != nil {
		return domain.RecordEntry{}, fmt.Errorf("insert record: %w", err)
	}

	g.publish(ctx)
	return rec, nil
}

// Delete implements Gateway. Ids that are not UUIDs cannot exist and are
// treated like any other missing record.
func (g *PostgresGateway) Delete(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		g.logger.Debug().Str("record_id", id).Msg("ignoring delete of malformed id")
		return nil
	}

	tag, err := g.pool.Exec(ctx, `DELETE FROM records WHERE id = $1::uuid`, parsed.String())
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	if tag.RowsAffected() > 0 {
		g.publish(ctx)
	}
	return nil
}

// List implements Gateway
func (g *PostgresGateway) List(ctx context.Context) (domain.Snapshot, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT seq, id::text, name, word_a, word_b, word_c, created_at
		FROM records
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RecordEntry, error) {
		var rec domain.RecordEntry
		err := row.Scan(&rec.Seq, &rec.ID, &rec.Name, &rec.A, &rec.B, &rec.C, &rec.Timestamp)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("list records: scan: %w", err)
	}
	return domain.Snapshot(records), nil
}

// Close implements Gateway
func (g *PostgresGateway) Close() error {
	g.fan.close()
	if err := g.notifier.Close(); err != nil {
		g.logger.Warn().Err(err).Msg("failed to close notifier")
	}
	g.pool.Close()
	return nil
}

func (g *PostgresGateway) publish(ctx context.Context) {
	if err := g.notifier.Publish(ctx); err != nil {
		g.logger.Error().Err(err).Msg("failed to publish change")
	}
}

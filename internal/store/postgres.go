package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reachlab/creator-scout/internal/db"
	"github.com/reachlab/creator-scout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":     `INSERT INTO runs (id, kind, query, target_location, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"complete_run":   `UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
	"get_run":        `SELECT id, kind, query, target_location, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_failure": `INSERT INTO run_failures (run_id, item_id, reason, attempts) VALUES ($1, $2, $3, $4)`,
	"list_failures":  `SELECT item_id, reason, attempts FROM run_failures WHERE run_id = $1`,
	"exported_ids":   `SELECT item_id FROM exported_ids`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used in tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind            TEXT NOT NULL,
	query           TEXT NOT NULL,
	target_location TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'running',
	summary         JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_failures (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	item_id  TEXT NOT NULL,
	reason   TEXT NOT NULL,
	attempts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exported_ids (
	item_id    TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_run_failures_run_id ON run_failures(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind, query, targetLocation string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, query, target_location, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, string(kind), query, targetLocation, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:             id,
		Kind:           kind,
		Query:          query,
		TargetLocation: targetLocation,
		Status:         model.RunStatusRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, query, target_location, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, query, target_location, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind = $1`
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordFailure(ctx context.Context, runID string, failure model.FailureRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_failures (run_id, item_id, reason, attempts) VALUES ($1, $2, $3, $4)`,
		runID, failure.ID, failure.Reason, failure.Attempts,
	)
	return eris.Wrapf(err, "postgres: record failure for run %s", runID)
}

func (s *PostgresStore) ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, reason, attempts FROM run_failures WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var failures []model.FailureRecord
	for rows.Next() {
		var f model.FailureRecord
		if err := rows.Scan(&f.ID, &f.Reason, &f.Attempts); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "postgres: list failures iterate")
}

// MarkExported bulk-inserts ids through a temp table so re-exporting an
// id from a later run is a no-op.
func (s *PostgresStore) MarkExported(ctx context.Context, runID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []any{id, runID, now})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "exported_ids",
		Columns:      []string{"item_id", "run_id", "created_at"},
		ConflictKeys: []string{"item_id"},
		DoNothing:    true,
	}, rows)
	return eris.Wrap(err, "postgres: mark exported")
}

func (s *PostgresStore) ExportedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT item_id FROM exported_ids`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: exported ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan exported id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: exported ids iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var summaryJSON []byte

	err := row.Scan(&r.ID, &r.Kind, &r.Query, &r.TargetLocation, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}


package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/state"
)

const schema = `CREATE TABLE IF NOT EXISTS orquestator_runs (
	id         text PRIMARY KEY,
	record     jsonb NOT NULL,
	status     text NOT NULL,
	updated_at timestamptz NOT NULL
)`

const upsertRun = `INSERT INTO orquestator_runs (id, record, status, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET record = EXCLUDED.record, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

// PostgresStore keeps one row per run.
type PostgresStore struct {
	db    *sql.DB
	locks *Locker
}

// PostgresOptions configures the connection pool.
type PostgresOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres connects, verifies the connection and ensures the table exists.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, runerrors.NewIOError("opening postgres", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, runerrors.NewIOError("pinging postgres", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, locks: NewLocker()}
}

// Migrate creates the runs table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return runerrors.NewIOError("creating runs table", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Save upserts the record.
func (s *PostgresStore) Save(ctx context.Context, run *state.Run) error {
	unlock := s.locks.Lock(run.ID)
	defer unlock()

	run.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(run)
	if err != nil {
		return runerrors.NewIOError("encoding run "+run.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertRun, run.ID, data, string(run.Status), run.UpdatedAt); err != nil {
		return runerrors.NewIOError("saving run "+run.ID, err)
	}
	return nil
}

// Load selects the record for id.
func (s *PostgresStore) Load(ctx context.Context, id string) (*state.Run, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM orquestator_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, runerrors.NewNotFound("run", id)
	}
	if err != nil {
		return nil, runerrors.NewIOError("loading run "+id, err)
	}
	return decodeRun(id, data)
}

// List selects records, filtering by status in SQL.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*state.Run, error) {
	query := `SELECT id, record FROM orquestator_runs ORDER BY id`
	var args []any
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		query = `SELECT id, record FROM orquestator_runs WHERE status = ANY($1) ORDER BY id`
		args = append(args, pq.Array(statuses))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, runerrors.NewIOError("listing runs", err)
	}
	defer rows.Close()

	var runs []*state.Run
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, runerrors.NewIOError("scanning run", err)
		}
		run, err := decodeRun(id, data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, runerrors.NewIOError("listing runs", err)
	}
	return runs, nil
}

func decodeRun(id string, data []byte) (*state.Run, error) {
	var run state.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, runerrors.NewIOError(fmt.Sprintf("decoding run %s", id), err)
	}
	return &run, nil
}

// Package postgres provides a Postgres-backed run log for deployments that
// centralize operator data in a relational database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// Pool is the subset of pgxpool.Pool the run log uses. It allows tests to
// substitute a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// RunLog implements crawl.RunLog using Postgres.
type RunLog struct {
	pool Pool
}

// New connects a RunLog to the database at dsn and ensures the schema.
func New(ctx context.Context, dsn string) (*RunLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	l := &RunLog{pool: pool}
	if err := l.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// NewWithPool wraps an existing pool (used by tests). The schema is assumed
// to exist.
func NewWithPool(pool Pool) *RunLog {
	return &RunLog{pool: pool}
}

func (l *RunLog) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS run_log (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			day DATE NOT NULL,
			attempt INT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			error_text TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_run_log_day ON run_log(day);
	`
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("initialize run log schema: %w", err)
	}
	return nil
}

// Append inserts one attempt outcome.
func (l *RunLog) Append(ctx context.Context, o crawl.Outcome) error {
	query := `
		INSERT INTO run_log (run_id, day, attempt, status, started_at, ended_at, error_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := l.pool.Exec(ctx, query,
		o.RunID,
		o.Day.Time(),
		o.Attempt,
		string(o.Status),
		o.StartedAt.UTC(),
		o.EndedAt.UTC(),
		o.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("append run log entry for %s: %w", o.Day, err)
	}
	return nil
}

// Query returns outcomes for days in [from, to], ordered by append time.
func (l *RunLog) Query(ctx context.Context, from, to crawl.Day) ([]crawl.Outcome, error) {
	query := `
		SELECT run_id, day, attempt, status, started_at, ended_at, error_text
		FROM run_log
		WHERE day BETWEEN $1 AND $2
		ORDER BY id ASC;
	`
	rows, err := l.pool.Query(ctx, query, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var out []crawl.Outcome
	for rows.Next() {
		var (
			o       crawl.Outcome
			day     time.Time
			status  string
			errText *string
		)
		if err := rows.Scan(&o.RunID, &day, &o.Attempt, &status, &o.StartedAt, &o.EndedAt, &errText); err != nil {
			return nil, fmt.Errorf("scan run log row: %w", err)
		}
		o.Day = crawl.DayOf(day)
		o.Status = crawl.Status(status)
		if errText != nil {
			o.ErrorText = *errText
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run log rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (l *RunLog) Close() {
	l.pool.Close()
}

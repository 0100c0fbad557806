// Package sqlite provides the default durable run log, backed by a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// isoDay is the sortable day encoding used in the day column so BETWEEN
// queries work lexicographically.
const isoDay = "2006-01-02"

// RunLog implements crawl.RunLog on SQLite. Appends are durable before
// returning: the WAL is synced on every commit (FULL synchronous), which is
// cheap at one row per fetch attempt. There is no update or delete path.
type RunLog struct {
	db *sql.DB
}

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*RunLog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("open run log database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect run log database: %w", err)
	}
	l := &RunLog{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize run log schema: %w", err)
	}
	return l, nil
}

func (l *RunLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		day TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		error_text TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_run_log_day ON run_log(day);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append inserts one attempt outcome.
func (l *RunLog) Append(ctx context.Context, o crawl.Outcome) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO run_log (run_id, day, attempt, status, started_at, ended_at, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		o.RunID,
		o.Day.Time().Format(isoDay),
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
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, day, attempt, status, started_at, ended_at, error_text
		FROM run_log
		WHERE day BETWEEN ? AND ?
		ORDER BY id ASC
	`, from.Time().Format(isoDay), to.Time().Format(isoDay))
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var out []crawl.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run log rows: %w", err)
	}
	return out, nil
}

func scanOutcome(rows *sql.Rows) (crawl.Outcome, error) {
	var (
		o       crawl.Outcome
		day     string
		status  string
		errText sql.NullString
	)
	if err := rows.Scan(&o.RunID, &day, &o.Attempt, &status, &o.StartedAt, &o.EndedAt, &errText); err != nil {
		return crawl.Outcome{}, fmt.Errorf("scan run log row: %w", err)
	}
	t, err := time.Parse(isoDay, day)
	if err != nil {
		return crawl.Outcome{}, fmt.Errorf("parse run log day %q: %w", day, err)
	}
	o.Day = crawl.DayOf(t)
	o.Status = crawl.Status(status)
	o.ErrorText = errText.String
	return o, nil
}

// Close closes the underlying database.
func (l *RunLog) Close() error {
	return l.db.Close()
}

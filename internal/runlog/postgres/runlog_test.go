package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

func TestAppendInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runLog := NewWithPool(mock)

	started := time.Date(2021, time.January, 2, 9, 0, 0, 0, time.UTC)
	outcome := crawl.Outcome{
		RunID:     "run-1",
		Day:       crawl.NewDay(2021, time.January, 2),
		Attempt:   3,
		Status:    crawl.StatusFailed,
		StartedAt: started,
		EndedAt:   started.Add(4 * time.Second),
		ErrorText: "http 503",
	}

	mock.ExpectExec("INSERT INTO run_log").
		WithArgs(
			outcome.RunID,
			outcome.Day.Time(),
			outcome.Attempt,
			string(outcome.Status),
			outcome.StartedAt,
			outcome.EndedAt,
			outcome.ErrorText,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, runLog.Append(context.Background(), outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSurfacesDatabaseError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runLog := NewWithPool(mock)

	mock.ExpectExec("INSERT INTO run_log").
		WillReturnError(errors.New("connection refused"))

	err = runLog.Append(context.Background(), crawl.Outcome{
		Day:    crawl.NewDay(2021, time.January, 2),
		Status: crawl.StatusSucceeded,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "append run log entry")
}

func TestQueryReturnsOutcomesInAppendOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runLog := NewWithPool(mock)

	from := crawl.NewDay(2021, time.January, 1)
	to := crawl.NewDay(2021, time.January, 3)
	started := time.Date(2021, time.January, 1, 8, 0, 0, 0, time.UTC)
	errText := "http 500"

	rows := pgxmock.NewRows([]string{"run_id", "day", "attempt", "status", "started_at", "ended_at", "error_text"}).
		AddRow("run-1", from.Time(), 1, "failed", started, started.Add(time.Second), &errText).
		AddRow("run-1", from.Time(), 2, "succeeded", started.Add(time.Minute), started.Add(time.Minute+time.Second), (*string)(nil))

	mock.ExpectQuery("SELECT run_id, day, attempt, status, started_at, ended_at, error_text").
		WithArgs(from.Time(), to.Time()).
		WillReturnRows(rows)

	got, err := runLog.Query(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, crawl.StatusFailed, got[0].Status)
	require.Equal(t, "http 500", got[0].ErrorText)
	require.True(t, got[0].Day.Equal(from))

	require.Equal(t, crawl.StatusSucceeded, got[1].Status)
	require.Equal(t, 2, got[1].Attempt)
	require.Empty(t, got[1].ErrorText)

	require.NoError(t, mock.ExpectationsWereMet())
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

func newTestRunLog(t *testing.T) *RunLog {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "runlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close()) })
	return l
}

func outcomeFor(day crawl.Day, attempt int, status crawl.Status) crawl.Outcome {
	started := day.Time().Add(9 * time.Hour)
	return crawl.Outcome{
		RunID:     "run-1",
		Day:       day,
		Attempt:   attempt,
		Status:    status,
		StartedAt: started,
		EndedAt:   started.Add(3 * time.Second),
	}
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	t.Parallel()

	l := newTestRunLog(t)
	ctx := context.Background()
	day := crawl.NewDay(2021, time.January, 2)

	o := outcomeFor(day, 1, crawl.StatusFailed)
	o.ErrorText = "http 503"
	require.NoError(t, l.Append(ctx, o))
	require.NoError(t, l.Append(ctx, outcomeFor(day, 2, crawl.StatusSucceeded)))

	got, err := l.Query(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "run-1", got[0].RunID)
	require.Equal(t, 1, got[0].Attempt)
	require.Equal(t, crawl.StatusFailed, got[0].Status)
	require.Equal(t, "http 503", got[0].ErrorText)
	require.True(t, got[0].Day.Equal(day))
	require.Equal(t, 3*time.Second, got[0].Duration())

	require.Equal(t, crawl.StatusSucceeded, got[1].Status)
	require.Empty(t, got[1].ErrorText)
}

func TestQueryFiltersByDayRange(t *testing.T) {
	t.Parallel()

	l := newTestRunLog(t)
	ctx := context.Background()

	for d := 1; d <= 5; d++ {
		day := crawl.NewDay(2021, time.January, d)
		require.NoError(t, l.Append(ctx, outcomeFor(day, 1, crawl.StatusSucceeded)))
	}

	got, err := l.Query(ctx, crawl.NewDay(2021, time.January, 2), crawl.NewDay(2021, time.January, 4))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, got[0].Day.Equal(crawl.NewDay(2021, time.January, 2)))
	require.True(t, got[2].Day.Equal(crawl.NewDay(2021, time.January, 4)))
}

func TestQueryAcrossMonthBoundary(t *testing.T) {
	t.Parallel()

	l := newTestRunLog(t)
	ctx := context.Background()

	jan := crawl.NewDay(2021, time.January, 31)
	feb := crawl.NewDay(2021, time.February, 1)
	require.NoError(t, l.Append(ctx, outcomeFor(jan, 1, crawl.StatusSucceeded)))
	require.NoError(t, l.Append(ctx, outcomeFor(feb, 1, crawl.StatusSucceeded)))

	// The ISO day encoding keeps BETWEEN correct across month boundaries,
	// where DD.MM.YYYY strings would sort wrong.
	got, err := l.Query(ctx, jan, feb)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestQueryEmptyRange(t *testing.T) {
	t.Parallel()

	l := newTestRunLog(t)
	got, err := l.Query(context.Background(), crawl.NewDay(2021, time.January, 1), crawl.NewDay(2021, time.January, 31))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReopenedDatabaseKeepsRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runlog.db")
	ctx := context.Background()
	day := crawl.NewDay(2021, time.January, 2)

	l, err := New(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, outcomeFor(day, 1, crawl.StatusSucceeded)))
	require.NoError(t, l.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Query(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

func TestLoadBeforeFirstSave(t *testing.T) {
	t.Parallel()

	store, err := New(filepath.Join(t.TempDir(), "checkpoint.json"))
	require.NoError(t, err)

	_, found, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "checkpoint.json")
	store, err := New(path)
	require.NoError(t, err)

	ctx := context.Background()
	day := crawl.NewDay(2021, time.March, 15)
	require.NoError(t, store.Save(ctx, crawl.Checkpoint{LastCompletedDay: day}))

	cp, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, cp.LastCompletedDay.Equal(day))
}

func TestSaveOverwrites(t *testing.T) {
	t.Parallel()

	store, err := New(filepath.Join(t.TempDir(), "checkpoint.json"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, crawl.Checkpoint{LastCompletedDay: crawl.NewDay(2021, time.March, 15)}))
	later := crawl.NewDay(2021, time.March, 16)
	require.NoError(t, store.Save(ctx, crawl.Checkpoint{LastCompletedDay: later}))

	cp, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, cp.LastCompletedDay.Equal(later))
}

func TestSurvivesProcessRestart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	ctx := context.Background()
	day := crawl.NewDay(2021, time.March, 15)

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, crawl.Checkpoint{LastCompletedDay: day}))

	reopened, err := New(path)
	require.NoError(t, err)
	cp, found, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, cp.LastCompletedDay.Equal(day))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := New(path)
	require.NoError(t, err)

	_, _, err = store.Load(context.Background())
	require.Error(t, err)
}

func TestLoadTreatsZeroDayAsMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_completed_day":""}`), 0o600))

	store, err := New(path)
	require.NoError(t, err)

	_, found, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

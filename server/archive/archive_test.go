package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

func openTestArchive(t *testing.T) *Service {
	t.Helper()

	svc, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func terminalSnapshot(url string, state job.State) job.Snapshot {
	j := job.New(job.Request{URL: url, OutputDir: "/downloads"})
	j.MarkActive()
	switch state {
	case job.StateCompleted:
		j.MarkCompleted("/downloads/out.mp4")
	case job.StateFailed:
		j.MarkFailed("some error")
	default:
		j.MarkCancelled()
	}
	return j.Snapshot()
}

func TestRecordAndList(t *testing.T) {
	svc := openTestArchive(t)
	ctx := context.Background()

	first := terminalSnapshot("https://example.com/a", job.StateCompleted)
	require.NoError(t, svc.record(ctx, first))
	second := terminalSnapshot("https://example.com/b", job.StateFailed)
	require.NoError(t, svc.record(ctx, second))

	entries, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, second.Id, entries[0].Id)
	assert.Equal(t, "failed", entries[0].State)
	assert.Equal(t, "/downloads/out.mp4", entries[1].Path)
}

func TestRecordIsIdempotent(t *testing.T) {
	svc := openTestArchive(t)
	ctx := context.Background()

	snap := terminalSnapshot("https://example.com/a", job.StateCompleted)
	require.NoError(t, svc.record(ctx, snap))
	require.NoError(t, svc.record(ctx, snap))

	entries, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStats(t *testing.T) {
	svc := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, svc.record(ctx, terminalSnapshot("https://example.com/a", job.StateCompleted)))
	require.NoError(t, svc.record(ctx, terminalSnapshot("https://example.com/b", job.StateCompleted)))
	require.NoError(t, svc.record(ctx, terminalSnapshot("https://example.com/c", job.StateCancelled)))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Succeeded)
}

func TestClear(t *testing.T) {
	svc := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, svc.record(ctx, terminalSnapshot("https://example.com/a", job.StateCompleted)))
	require.NoError(t, svc.Clear(ctx))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestAttachRecordsOnlyTerminalEvents(t *testing.T) {
	svc := openTestArchive(t)
	bus := events.NewBus()
	require.NoError(t, svc.Attach(bus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Consume(ctx)

	pending := job.New(job.Request{URL: "https://example.com/p"})
	bus.PublishState(pending.Snapshot())
	bus.PublishState(terminalSnapshot("https://example.com/t", job.StateCompleted))
	bus.WaitAsync()

	require.Eventually(t, func() bool {
		entries, err := svc.List(context.Background(), 10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 20*time.Millisecond)

	entries, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/t", entries[0].URL)
}

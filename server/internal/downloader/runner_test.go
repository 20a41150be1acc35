package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

// writeStub drops a shell script standing in for yt-dlp.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newRunnerJob(t *testing.T) *job.Job {
	t.Helper()
	return job.New(job.Request{
		URL:       "https://example.com/watch?v=abc",
		Format:    "best",
		OutputDir: t.TempDir(),
	})
}

func TestRunnerCompletes(t *testing.T) {
	j := newRunnerJob(t)
	out := filepath.Join(j.OutputDir(), "video.mp4")

	stub := writeStub(t, fmt.Sprintf(`
echo '{"eta":10,"percentage":" 50.0%%","speed":1024.5}'
echo 'not a progress line'
printf 'data' > %q
echo '{"filepath":%q}'
exit 0
`, out, out))

	r := NewRunner(stub, "", time.Second, events.NewBus())
	r.Start(context.Background(), j)

	assert.Equal(t, job.StateCompleted, j.State())
	assert.Equal(t, out, j.SavedPath())
	assert.Equal(t, "50.0%", j.Snapshot().Progress.Percentage)
}

func TestRunnerScansOutputDir(t *testing.T) {
	j := newRunnerJob(t)
	out := filepath.Join(j.OutputDir(), "video.mp4")

	// exits clean without a postprocess line, the output dir scan has
	// to find the file
	stub := writeStub(t, fmt.Sprintf(`
sleep 0.1
printf 'data' > %q
exit 0
`, out))

	r := NewRunner(stub, "", time.Second, events.NewBus())
	r.Start(context.Background(), j)

	assert.Equal(t, job.StateCompleted, j.State())
	assert.Equal(t, out, j.SavedPath())
}

func TestRunnerFailsWithStderrTail(t *testing.T) {
	j := newRunnerJob(t)

	stub := writeStub(t, `
echo 'ERROR: unable to download video data' 1>&2
exit 1
`)

	r := NewRunner(stub, "", time.Second, events.NewBus())
	r.Start(context.Background(), j)

	assert.Equal(t, job.StateFailed, j.State())
	assert.Contains(t, j.Snapshot().Error, "unable to download")
}

func TestRunnerFailsWhenOutputMissing(t *testing.T) {
	j := newRunnerJob(t)

	stub := writeStub(t, "exit 0\n")

	r := NewRunner(stub, "", time.Second, events.NewBus())
	r.Start(context.Background(), j)

	assert.Equal(t, job.StateFailed, j.State())
	assert.Contains(t, j.Snapshot().Error, ErrOutputMissing.Error())
}

func TestRunnerMissingBinary(t *testing.T) {
	j := newRunnerJob(t)

	r := NewRunner("", "", time.Second, events.NewBus())
	r.Start(context.Background(), j)

	assert.Equal(t, job.StateFailed, j.State())
	assert.Contains(t, j.Snapshot().Error, ErrToolNotFound.Error())
}

func TestRunnerCancelKillsProcess(t *testing.T) {
	j := newRunnerJob(t)
	partial := filepath.Join(j.OutputDir(), "video.mp4.part")
	require.NoError(t, os.WriteFile(partial, []byte("partial"), 0o644))
	saved := filepath.Join(j.OutputDir(), "video.mp4")
	require.NoError(t, os.WriteFile(saved, []byte("partial"), 0o644))

	stub := writeStub(t, fmt.Sprintf(`
echo '{"filepath":%q}'
sleep 30
`, saved))

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(stub, "", time.Second, events.NewBus())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(ctx, j)
	}()

	require.Eventually(t, func() bool {
		return j.SavedPath() != ""
	}, 2*time.Second, 10*time.Millisecond)

	j.RequestCancel()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}

	assert.Equal(t, job.StateCancelled, j.State())
	assert.NoFileExists(t, saved)
	assert.NoFileExists(t, partial)
}

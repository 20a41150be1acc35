package downloader

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

const stderrTailLines = 5

// Runner drives one job's external yt-dlp process and translates its
// output stream into progress and status updates.
type Runner struct {
	bin    string
	ffmpeg string
	grace  time.Duration
	bus    *events.Bus
}

func NewRunner(bin, ffmpeg string, grace time.Duration, bus *events.Bus) *Runner {
	if grace <= 0 {
		grace = time.Second * 5
	}
	return &Runner{
		bin:    bin,
		ffmpeg: ffmpeg,
		grace:  grace,
		bus:    bus,
	}
}

// Start blocks until the job reaches a terminal state. It satisfies
// queue.StartFunc.
func (r *Runner) Start(ctx context.Context, j *job.Job) {
	if r.bin == "" {
		j.MarkFailed(ErrToolNotFound.Error())
		slog.Error("download failed", slog.String("id", j.Id()), slog.Any("err", ErrToolNotFound))
		return
	}

	args := buildArgs(j, r.ffmpeg)

	slog.Info("requesting download", slog.String("url", j.URL()), slog.Any("params", args))

	cmd := exec.Command(r.bin, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		j.MarkFailed(fmt.Sprintf("%s: %s", ErrStartFailure, err))
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		j.MarkFailed(fmt.Sprintf("%s: %s", ErrStartFailure, err))
		return
	}

	if err := cmd.Start(); err != nil {
		j.MarkFailed(fmt.Sprintf("%s: %s", ErrStartFailure, err))
		slog.Error("failed to start downloader process", slog.String("id", j.Id()), slog.Any("err", err))
		return
	}

	startedAt := time.Now()

	// cooperative cancellation: SIGTERM the process group, escalate to
	// SIGKILL if it ignores us past the grace period
	waitDone := make(chan struct{})
	go r.reaper(ctx, cmd, waitDone, j.Id())

	tail := newTailBuffer(stderrTailLines)

	var scanners sync.WaitGroup
	scanners.Add(2)

	go func() {
		defer scanners.Done()

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			event, ok := ParseProgressLine(scanner.Bytes())
			if !ok {
				continue
			}
			if event.SavedPath != "" {
				j.SetSavedPath(event.SavedPath)
			}
			if event.Progress != nil {
				j.SetProgress(*event.Progress)
				r.bus.PublishProgress(j.Snapshot())
			}
		}
	}()

	go func() {
		defer scanners.Done()

		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			tail.Append(scanner.Text())
			slog.Error("downloader process error",
				slog.String("id", j.Id()),
				slog.String("url", j.URL()),
				slog.String("err", scanner.Text()),
			)
		}
	}()

	scanners.Wait()
	waitErr := cmd.Wait()
	close(waitDone)

	if j.CancelRequested() || ctx.Err() != nil {
		r.cleanupPartial(j)
		j.MarkCancelled()
		slog.Info("download cancelled", slog.String("id", j.Id()))
		return
	}

	if waitErr != nil {
		detail := tail.String()
		if detail == "" {
			detail = waitErr.Error()
		}
		j.MarkFailed(detail)
		slog.Error("download failed", slog.String("id", j.Id()), slog.String("err", detail))
		return
	}

	saved, err := r.resolveOutput(j, startedAt)
	if err != nil {
		j.MarkFailed(err.Error())
		slog.Error("download failed", slog.String("id", j.Id()), slog.Any("err", err))
		return
	}

	j.MarkCompleted(saved)
	slog.Info("download completed", slog.String("id", j.Id()), slog.String("path", saved))
}

func (r *Runner) reaper(ctx context.Context, cmd *exec.Cmd, waitDone <-chan struct{}, id string) {
	select {
	case <-waitDone:
		return
	case <-ctx.Done():
	}

	if err := terminateProcess(cmd.Process); err != nil {
		slog.Error("failed to terminate process", slog.String("id", id), slog.Any("err", err))
	}

	select {
	case <-waitDone:
	case <-time.After(r.grace):
		slog.Warn("process ignored termination, killing", slog.String("id", id))
		if err := killProcess(cmd.Process); err != nil {
			slog.Error("failed to kill process", slog.String("id", id), slog.Any("err", err))
		}
	}
}

// A cancelled job deletes the partial output it knows about. Unnamed
// fragment files are left for yt-dlp's --continue to pick up.
func (r *Runner) cleanupPartial(j *job.Job) {
	saved := j.SavedPath()
	if saved == "" {
		return
	}

	for _, p := range []string{saved, saved + ".part"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove partial output", slog.String("path", p), slog.Any("err", err))
		}
	}
}

// resolveOutput verifies that a clean exit actually produced a file.
// The postprocess hook path is authoritative, otherwise the output
// directory is scanned for anything written after the job started.
func (r *Runner) resolveOutput(j *job.Job, startedAt time.Time) (string, error) {
	if saved := j.SavedPath(); saved != "" {
		if _, err := os.Stat(saved); err == nil {
			return saved, nil
		}
	}

	entries, err := os.ReadDir(j.OutputDir())
	if err != nil {
		return "", ErrOutputMissing
	}

	var (
		newest     string
		newestTime time.Time
	)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".part" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if !info.ModTime().Before(startedAt) && info.ModTime().After(newestTime) {
			newest = filepath.Join(j.OutputDir(), entry.Name())
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", ErrOutputMissing
	}

	return newest, nil
}

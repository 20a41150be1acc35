package rpc

import (
	"context"
	"log/slog"

	"downpour/server/archive"
	"downpour/server/internal/job"
	"downpour/server/internal/metadata"
	"downpour/server/presets"
	"downpour/server/rest"
	"downpour/server/settings"
)

type Service struct {
	inner *rest.Service
}

type Running []job.Snapshot

type NoArgs struct{}

// Exec submits a download. The result is the newly created job id.
func (s *Service) Exec(args rest.DownloadRequest, result *string) error {
	snap, err := s.inner.Submit(args)
	if err != nil {
		return err
	}

	*result = snap.Id
	return nil
}

// CheckLink retrieves metadata for a URL without queueing it.
func (s *Service) CheckLink(args string, meta *metadata.Metadata) error {
	m, err := s.inner.CheckLink(context.Background(), args)
	if err != nil {
		return err
	}

	*meta = *m
	return nil
}

// Progress retrieves the snapshot of a specific job given its id.
func (s *Service) Progress(args string, snap *job.Snapshot) error {
	result, err := s.inner.Progress(args)
	if err != nil {
		return err
	}

	*snap = result
	return nil
}

// Running retrieves a snapshot of every tracked job.
func (s *Service) Running(args NoArgs, running *Running) error {
	snapshots, err := s.inner.Running(context.Background())
	if err != nil {
		return err
	}

	*running = snapshots
	return nil
}

// Kill cancels a job given its id.
func (s *Service) Kill(args string, killed *string) error {
	slog.Info("trying to cancel job", slog.String("id", args))

	if err := s.inner.Cancel(args); err != nil {
		return err
	}

	*killed = args
	return nil
}

// KillAll cancels every pending and active job.
func (s *Service) KillAll(args NoArgs, killed *string) error {
	slog.Info("cancelling all jobs")
	s.inner.CancelAll()
	return nil
}

// Clear removes a terminal job from the registry.
func (s *Service) Clear(args string, cleared *string) error {
	if err := s.inner.Clear(args); err != nil {
		return err
	}

	*cleared = args
	return nil
}

// ClearCompleted removes every terminal job from the registry.
func (s *Service) ClearCompleted(args NoArgs, cleared *string) error {
	s.inner.ClearCompleted()
	return nil
}

// Formats lists the available download presets.
func (s *Service) Formats(args NoArgs, result *[]presets.Preset) error {
	*result = s.inner.Presets()
	return nil
}

// SetConcurrency changes the admission cap, clamped to the allowed
// range. Result carries the applied settings.
func (s *Service) SetConcurrency(args int, applied *settings.Settings) error {
	current := s.inner.Settings()
	current.Concurrency = args

	saved, err := s.inner.UpdateSettings(current)
	if err != nil {
		return err
	}

	*applied = saved
	return nil
}

// History lists the recorded finished downloads.
func (s *Service) History(args int, entries *[]archive.Entry) error {
	result, err := s.inner.History(context.Background(), args)
	if err != nil {
		return err
	}

	*entries = result
	return nil
}

// FreeSpace gets the available bytes of the download directory.
func (s *Service) FreeSpace(args NoArgs, free *uint64) error {
	result, err := s.inner.FreeSpace()
	if err != nil {
		return err
	}

	*free = result
	return nil
}

// DirectoryTree returns a flattened tree of the download directory.
func (s *Service) DirectoryTree(args NoArgs, tree *[]string) error {
	result, err := s.inner.DirectoryTree()
	if err != nil {
		*tree = nil
		return err
	}

	*tree = result
	return nil
}

// UpdateExecutable updates yt-dlp using its builtin function.
func (s *Service) UpdateExecutable(args NoArgs, updated *bool) error {
	slog.Info("updating downloader executable to the latest release")

	if err := s.inner.UpdateExecutable(); err != nil {
		slog.Error("failed updating downloader executable", slog.Any("err", err))
		*updated = false
		return err
	}

	*updated = true
	return nil
}

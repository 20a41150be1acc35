package rest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"downpour/server/archive"
	"downpour/server/internal/downloader"
	"downpour/server/internal/job"
	"downpour/server/internal/kv"
	"downpour/server/internal/metadata"
	"downpour/server/internal/queue"
	"downpour/server/presets"
	"downpour/server/settings"
	"downpour/server/sys"
	"downpour/server/updater"
)

var ErrJobBusy = errors.New("job is still pending or active, cancel it first")

type Service struct {
	mdb      *kv.Store
	queue    *queue.Manager
	settings *settings.Store
	archive  *archive.Service
	presets  []presets.Preset

	downloaderBin string
	ffmpegBin     string
}

func NewService(args *ContainerArgs) *Service {
	return &Service{
		mdb:           args.MDB,
		queue:         args.Queue,
		settings:      args.Settings,
		archive:       args.Archive,
		presets:       args.Presets,
		downloaderBin: args.DownloaderBin,
		ffmpegBin:     args.FFmpegBin,
	}
}

// Submit validates the request, builds a job and hands it to the
// queue. The returned snapshot is the job in its pending state.
func (s *Service) Submit(req DownloadRequest) (job.Snapshot, error) {
	if err := metadata.ValidateURL(req.URL); err != nil {
		return job.Snapshot{}, err
	}

	current := s.settings.Load()

	preset := presets.Find(s.presets, req.Preset)
	format := preset.Format
	if req.Format != "" {
		format = req.Format
	}

	if preset.ExtractAudio && s.ffmpegBin == "" {
		return job.Snapshot{}, fmt.Errorf("audio extraction needs ffmpeg: %w", downloader.ErrToolNotFound)
	}

	outDir := current.DownloadDir
	if req.Path != "" {
		outDir = req.Path
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return job.Snapshot{}, fmt.Errorf("cannot create output directory: %w", err)
	}

	j := job.New(job.Request{
		URL:          req.URL,
		Preset:       preset.Name,
		Format:       format,
		ExtractAudio: preset.ExtractAudio,
		OutputDir:    outDir,
	})

	s.mdb.Set(j)
	s.queue.Submit(j)

	return j.Snapshot(), nil
}

// CheckLink fetches metadata for a URL without queueing anything.
func (s *Service) CheckLink(ctx context.Context, url string) (*metadata.Metadata, error) {
	return metadata.Fetch(ctx, s.downloaderBin, url)
}

func (s *Service) Running(ctx context.Context) ([]job.Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, context.Canceled
	default:
		return s.mdb.All(), nil
	}
}

func (s *Service) Progress(id string) (job.Snapshot, error) {
	j, err := s.mdb.Get(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	return j.Snapshot(), nil
}

func (s *Service) Cancel(id string) error {
	if _, err := s.mdb.Get(id); err != nil {
		return err
	}
	s.queue.Cancel(id)
	return nil
}

func (s *Service) CancelAll() {
	s.queue.CancelAll()
}

// Clear removes one terminal job from the registry. Pending and active
// jobs stay put until cancelled.
func (s *Service) Clear(id string) error {
	j, err := s.mdb.Get(id)
	if err != nil {
		return err
	}

	if !j.State().Terminal() {
		return ErrJobBusy
	}

	s.mdb.Delete(id)
	return nil
}

// ClearCompleted drops every terminal job from the registry.
func (s *Service) ClearCompleted() {
	for _, id := range s.mdb.Keys() {
		j, err := s.mdb.Get(id)
		if err != nil {
			continue
		}
		if j.State().Terminal() {
			s.mdb.Delete(id)
		}
	}
}

func (s *Service) Settings() settings.Settings {
	return s.settings.Load()
}

// UpdateSettings persists the new preferences and forwards a changed
// concurrency cap to the queue.
func (s *Service) UpdateSettings(next settings.Settings) (settings.Settings, error) {
	saved, err := s.settings.Save(next)
	if err != nil {
		return saved, err
	}

	s.queue.SetConcurrency(saved.Concurrency)
	return saved, nil
}

func (s *Service) Presets() []presets.Preset {
	return s.presets
}

func (s *Service) History(ctx context.Context, limit int) ([]archive.Entry, error) {
	return s.archive.List(ctx, limit)
}

func (s *Service) HistoryStats(ctx context.Context) (archive.Stats, error) {
	return s.archive.Stats(ctx)
}

func (s *Service) ClearHistory(ctx context.Context) error {
	return s.archive.Clear(ctx)
}

func (s *Service) FreeSpace() (uint64, error) {
	return sys.FreeSpace(s.settings.Load().DownloadDir)
}

func (s *Service) DirectoryTree() ([]string, error) {
	return sys.DirectoryTree(s.settings.Load().DownloadDir)
}

func (s *Service) UpdateExecutable() error {
	if s.downloaderBin == "" {
		return downloader.ErrToolNotFound
	}
	return updater.UpdateExecutable(s.downloaderBin)
}

func (s *Service) ToolsAvailable() (bool, bool) {
	return s.downloaderBin != "", s.ffmpegBin != ""
}

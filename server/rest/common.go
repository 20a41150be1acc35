package rest

import (
	"downpour/server/archive"
	"downpour/server/internal/kv"
	"downpour/server/internal/queue"
	"downpour/server/presets"
	"downpour/server/settings"
)

type ContainerArgs struct {
	MDB      *kv.Store
	Queue    *queue.Manager
	Settings *settings.Store
	Archive  *archive.Service
	Presets  []presets.Preset

	DownloaderBin string
	FFmpegBin     string
}

// DownloadRequest is the submit payload shared by the REST and RPC
// surfaces.
type DownloadRequest struct {
	URL    string `json:"url"`
	Preset string `json:"preset,omitempty"`
	Format string `json:"format,omitempty"`
	Path   string `json:"path,omitempty"`
}

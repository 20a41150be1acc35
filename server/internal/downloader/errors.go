package downloader

import "errors"

// Per-job error taxonomy. Every failure is surfaced on the job itself,
// none of them is fatal to the queue.
var (
	ErrToolNotFound  = errors.New("downloader executable not found")
	ErrInvalidLink   = errors.New("not a valid http(s) link")
	ErrStartFailure  = errors.New("failed to start downloader process")
	ErrOutputMissing = errors.New("process exited cleanly but produced no output")
)

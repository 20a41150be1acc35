package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os/exec"
	"time"

	"downpour/server/internal/downloader"
)

const fetchTimeout = time.Second * 15

// Metadata is the link pre-check result shown before anything gets
// queued.
type Metadata struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Webpage   string  `json:"webpage_url,omitempty"`
	FetchedAt time.Time
}

// ValidateURL rejects anything that is not a plain http(s) link before
// a subprocess is ever involved.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return downloader.ErrInvalidLink
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return downloader.ErrInvalidLink
	}
	return nil
}

// Fetch runs the downloader in metadata-only mode and decodes the
// result.
func Fetch(ctx context.Context, bin, rawURL string) (*Metadata, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	if bin == "" {
		return nil, downloader.ErrToolNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, rawURL, "-J", "--no-playlist", "--no-warnings")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var bufferedStderr bytes.Buffer
	go func() {
		io.Copy(&bufferedStderr, stderr)
	}()

	slog.Info("retrieving metadata", slog.String("url", rawURL))

	meta := Metadata{
		URL:       rawURL,
		FetchedAt: time.Now(),
	}

	decodeErr := decode(stdout, &meta)

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s", downloader.ErrInvalidLink, bufferedStderr.String())
	}

	if decodeErr != nil {
		return nil, errors.Join(downloader.ErrInvalidLink, decodeErr)
	}

	return &meta, nil
}

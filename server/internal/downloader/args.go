package downloader

import (
	"path/filepath"

	"downpour/server/internal/job"
)

const outputTemplate = "%(title).180B.%(ext)s"

// buildArgs translates a job into yt-dlp argv. Retry and fragment
// settings mirror what the desktop builds shipped with.
func buildArgs(j *job.Job, ffmpegPath string) []string {
	args := []string{
		j.URL(),
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--no-exec",
		"--continue",
		"--retries", "10",
		"--fragment-retries", "10",
		"--concurrent-fragments", "3",
	}

	args = append(args, progressTemplates()...)

	if j.ExtractAudio() {
		args = append(args,
			"-f", "bestaudio/best",
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
		)
	} else {
		if f := j.Format(); f != "" {
			args = append(args, "-f", f)
		}
		args = append(args, "--merge-output-format", "mp4")
	}

	if ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", ffmpegPath)
	}

	args = append(args, "-o", filepath.Join(j.OutputDir(), outputTemplate))

	return args
}

package updater

import (
	"log/slog"
	"os/exec"
)

// UpdateExecutable updates yt-dlp using its builtin self-updater.
func UpdateExecutable(bin string) error {
	cmd := exec.Command(bin, "-U")

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		slog.Info("updater output", slog.String("out", string(out)))
	}

	return err
}

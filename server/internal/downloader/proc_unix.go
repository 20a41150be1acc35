//go:build unix

package downloader

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// yt-dlp spawns child processes (ffmpeg among them). The parent is
// started in its own process group so a single signal reaches all of
// them.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process) error {
	pgid, err := unix.Getpgid(p.Pid)
	if err != nil {
		return err
	}
	return unix.Kill(-pgid, unix.SIGTERM)
}

func killProcess(p *os.Process) error {
	pgid, err := unix.Getpgid(p.Pid)
	if err != nil {
		return p.Kill()
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}

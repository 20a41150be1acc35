//go:build windows

package downloader

import (
	"os"
	"os/exec"
)

// Windows has no process groups in the unix sense, termination goes
// straight to Kill.
func setProcessGroup(cmd *exec.Cmd) {}

func terminateProcess(p *os.Process) error {
	return p.Kill()
}

func killProcess(p *os.Process) error {
	return p.Kill()
}

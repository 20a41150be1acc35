package downloader

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ResolveTool finds an external executable by searching PATH first and
// an application-local directory second. Absolute paths are checked
// as-is.
func ResolveTool(name, localDir string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
		return "", ErrToolNotFound
	}

	if found, err := exec.LookPath(name); err == nil {
		return found, nil
	}

	if localDir == "" {
		return "", ErrToolNotFound
	}

	candidates := []string{filepath.Join(localDir, name)}
	if runtime.GOOS == "windows" {
		candidates = append(candidates, filepath.Join(localDir, name+".exe"))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", ErrToolNotFound
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrToolNotFound)
}

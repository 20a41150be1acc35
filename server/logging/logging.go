package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// RotatableLogger is an io.Writer backed by a log file that can be
// rotated in place.
type RotatableLogger struct {
	mu   sync.Mutex
	path string
	fd   *os.File
}

func NewRotatableLogger(path string) (*RotatableLogger, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &RotatableLogger{
		path: path,
		fd:   fd,
	}, nil
}

func (l *RotatableLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fd.Write(p)
}

// Rotate renames the current file with a timestamp suffix and starts
// a fresh one.
func (l *RotatableLogger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fd.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().Format("2006-01-02T15-04-05"))
	if err := os.Rename(l.path, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}

	fd, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	l.fd = fd
	return nil
}

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends to a log file and rotates it by size, keeping a
// fixed number of numbered backups (mirror.log.1 is the newest).
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	maxSize int64
	backups int
	written int64
}

// NewRotatingWriter opens (or creates) the log file at path. maxSize <= 0
// disables rotation.
func NewRotatingWriter(path string, maxSize int64, backups int) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxSize: maxSize, backups: backups}
	if err := w.open(); err != nil {
		return nil, err
	}

	info, err := w.file.Stat()
	if err != nil {
		_ = w.file.Close()
		return nil, err
	}
	w.written = info.Size()
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	w.file = f
	return nil
}

// rotate shifts mirror.log.N to mirror.log.N+1, drops the oldest, and moves
// the live file to .1 before reopening it empty.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	_ = os.Remove(w.backupPath(w.backups))
	for i := w.backups - 1; i >= 1; i-- {
		if _, err := os.Stat(w.backupPath(i)); err == nil {
			if err := os.Rename(w.backupPath(i), w.backupPath(i+1)); err != nil {
				return err
			}
		}
	}
	if w.backups > 0 {
		if err := os.Rename(w.path, w.backupPath(1)); err != nil {
			return err
		}
	} else {
		_ = os.Remove(w.path)
	}

	if err := w.open(); err != nil {
		return err
	}
	w.written = 0
	return nil
}

func (w *RotatingWriter) backupPath(n int) string {
	return filepath.Join(filepath.Dir(w.path), fmt.Sprintf("%s.%d", filepath.Base(w.path), n))
}

var _ io.WriteCloser = (*RotatingWriter)(nil)

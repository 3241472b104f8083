package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig holds configuration for log rotation.
type RotationConfig struct {
	// MaxSizeMB is the size in megabytes at which the file is rotated.
	// Zero disables rotation.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
	// Compress gzips rotated files.
	Compress bool
}

// DefaultRotationConfig returns the rotation settings used when the config
// file does not override them.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// RotatingWriter is an io.WriteCloser over a file that is rotated by size.
// Backups are named path.1 (newest) through path.N, with a .gz suffix when
// compression is enabled. It is safe for concurrent use.
type RotatingWriter struct {
	mu sync.Mutex

	path       string
	maxBytes   int64
	maxBackups int
	compress   bool

	file *os.File
	size int64

	compressWG sync.WaitGroup
}

// NewRotatingWriter opens (or creates) path for appending.
func NewRotatingWriter(path string, config RotationConfig) (*RotatingWriter, error) {
	rw := &RotatingWriter{
		path:       path,
		maxBytes:   int64(config.MaxSizeMB) * 1024 * 1024,
		maxBackups: config.MaxBackups,
		compress:   config.Compress,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

// open opens the current file. The caller must hold the mutex.
func (rw *RotatingWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(rw.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(rw.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	rw.file = file
	rw.size = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past the limit.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, fmt.Errorf("log file is closed")
	}

	if rw.maxBytes > 0 && rw.size > 0 && rw.size+int64(len(p)) > rw.maxBytes {
		if err := rw.rotate(); err != nil {
			// Keep writing to whatever file is open rather than dropping lines.
			fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
		}
		if rw.file == nil {
			return 0, fmt.Errorf("log file unavailable after failed rotation")
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// rotate moves the current file to .1 and opens a fresh one. The caller must
// hold the mutex.
func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rw.file = nil

	rw.shiftBackups()

	first := rw.backupPath(1)
	if rw.maxBackups <= 0 {
		_ = os.Remove(rw.path)
	} else if err := os.Rename(rw.path, first); err != nil {
		if openErr := rw.open(); openErr != nil {
			return fmt.Errorf("failed to rename log file and reopen: %w", openErr)
		}
		return fmt.Errorf("failed to rename log file: %w", err)
	} else if rw.compress {
		rw.compressWG.Add(1)
		go func() {
			defer rw.compressWG.Done()
			compressFile(first)
		}()
	}

	return rw.open()
}

// shiftBackups renames path.i to path.i+1 and drops the oldest.
func (rw *RotatingWriter) shiftBackups() {
	if rw.maxBackups <= 0 {
		return
	}

	oldest := rw.backupPath(rw.maxBackups)
	_ = os.Remove(oldest)
	_ = os.Remove(oldest + ".gz")

	for i := rw.maxBackups - 1; i >= 1; i-- {
		from, to := rw.backupPath(i), rw.backupPath(i+1)
		if _, err := os.Stat(from + ".gz"); err == nil {
			_ = os.Rename(from+".gz", to+".gz")
		} else if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, to)
		}
	}
}

func (rw *RotatingWriter) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}

// compressFile gzips path into path.gz and removes path on success.
func compressFile(path string) {
	src, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open log file for compression %s: %v\n", path, err)
		return
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.Create(gzPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create compressed log file %s: %v\n", gzPath, err)
		return
	}

	zw := gzip.NewWriter(dst)
	_, copyErr := io.Copy(zw, src)
	closeErr := zw.Close()
	fileErr := dst.Close()
	if copyErr != nil || closeErr != nil || fileErr != nil {
		_ = os.Remove(gzPath)
		fmt.Fprintf(os.Stderr, "Warning: failed to compress log file %s\n", path)
		return
	}

	_ = os.Remove(path)
}

// Sync flushes the current file to disk.
func (rw *RotatingWriter) Sync() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	return rw.file.Sync()
}

// Close syncs and closes the current file and waits for any pending
// compression to finish.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	defer rw.compressWG.Wait()

	if rw.file == nil {
		return nil
	}
	if err := rw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rw.file = nil
	return nil
}

// CurrentSize returns the size of the current file in bytes.
func (rw *RotatingWriter) CurrentSize() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.size
}

// FilePath returns the path of the current file.
func (rw *RotatingWriter) FilePath() string {
	return rw.path
}

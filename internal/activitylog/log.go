package activitylog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/stats"
)

// CounterSource returns the counters of the current session, keyed by
// summary key. It is called under the log mutex on every write.
type CounterSource func() map[string]int64

// Log is the durable activity log of one process. All writers share a
// single mutex and every write replaces the whole file atomically.
type Log struct {
	mu       sync.Mutex
	path     string
	lock     *FileLock
	counters CounterSource
	baseline stats.Summary
	records  []json.RawMessage
	closed   bool
}

// Open loads the log at path and locks it against other processes. A
// missing file starts an empty log. An existing file that cannot be parsed,
// including an empty one, is rejected with ErrCorruptLog.
func Open(path string, counters CounterSource) (*Log, error) {
	if counters == nil {
		counters = func() map[string]int64 { return nil }
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewLogFileError("create log directory", err).WithPath(path)
		}
	}

	lock := NewFileLock(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.NewLogFileError("lock activity log", err).WithPath(path)
	}
	if !ok {
		return nil, errors.NewLogFileError("open activity log", errors.ErrLogLocked).WithPath(path)
	}

	doc, err := Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = lock.Unlock()
			return nil, err
		}
		doc = &Document{}
	}
	if doc.Summary == nil {
		doc.Summary = stats.Summary{}
	}

	return &Log{
		path:     path,
		lock:     lock,
		counters: counters,
		baseline: doc.Summary,
		records:  doc.Records,
	}, nil
}

// Read parses the log at path without locking it. A missing file yields an
// error wrapping the underlying os.ErrNotExist.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read activity log: %w", err)
		}
		return nil, errors.NewLogFileError("read activity log", err).WithPath(path)
	}
	return Parse(path, data)
}

// Parse decodes a log document. name is only used in error messages.
func Parse(name string, data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewLogFileError("activity log is empty", errors.ErrCorruptLog).WithPath(name)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.NewLogFileError("parse activity log: "+err.Error(), errors.ErrCorruptLog).WithPath(name)
	}
	// Every document this package writes carries a summary object.
	if summary, ok := fields["summary"]; !ok || bytes.Equal(bytes.TrimSpace(summary), []byte("null")) {
		return nil, errors.NewLogFileError("activity log has no summary", errors.ErrCorruptLog).WithPath(name)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewLogFileError("parse activity log: "+err.Error(), errors.ErrCorruptLog).WithPath(name)
	}
	return &doc, nil
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Baseline returns the summary loaded at startup.
func (l *Log) Baseline() stats.Summary {
	return stats.Summary{}.Add(l.baseline)
}

// Summary returns the baseline plus the current session counters.
func (l *Log) Summary() stats.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.baseline.Add(l.counters())
}

// Len returns the number of records, old and new.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Append adds rec and rewrites the file. The record is kept in memory even
// if the write fails, so the next successful write persists it.
func (l *Log) Append(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.NewLogFileError("encode record", err).WithPath(l.path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.NewLogFileError("append to closed log", nil).WithPath(l.path)
	}
	l.records = append(l.records, raw)
	return l.writeLocked()
}

// Close flushes the log one last time and releases the process lock.
// Calling Close more than once is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	err := l.writeLocked()
	if uerr := l.lock.Unlock(); uerr != nil && err == nil {
		err = errors.NewLogFileError("unlock activity log", uerr).WithPath(l.path)
	}
	return err
}

func (l *Log) writeLocked() error {
	doc := &Document{
		Summary: l.baseline.Add(l.counters()),
		Records: l.records,
	}
	if err := WriteAtomic(l.path, doc); err != nil {
		return errors.NewLogFileError("write activity log", err).WithPath(l.path)
	}
	return nil
}

// WriteAtomic encodes doc and replaces path with it. The document is
// written to a temp file in the same directory, synced, then renamed over
// the target, so readers see either the old or the new file.
func WriteAtomic(path string, doc *Document) error {
	if doc.Records == nil {
		doc = &Document{Summary: doc.Summary, Records: []json.RawMessage{}}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	success = true
	return nil
}

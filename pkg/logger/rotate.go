package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rollingFile is a size-based rotating file writer. Rotated files are kept
// as <path>.1 .. <path>.N, newest first, and pruned by count and age.
type rollingFile struct {
	mu        sync.Mutex
	file      *os.File
	written   int64
	path      string
	limit     int64
	backups   int
	retainFor time.Duration
}

func newRollingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) (*rollingFile, error) {
	if path == "" {
		return nil, errors.New("rolling file path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 7
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建审计日志目录失败: %w", err)
	}
	return &rollingFile{
		path:      path,
		limit:     int64(maxSizeMB) * 1024 * 1024,
		backups:   maxBackups,
		retainFor: time.Duration(maxAgeDays) * 24 * time.Hour,
	}, nil
}

func (f *rollingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return 0, err
	}
	if f.written+int64(len(p)) > f.limit {
		if err := f.roll(); err != nil {
			return 0, err
		}
		if err := f.open(); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *rollingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.written = 0
	return err
}

func (f *rollingFile) open() error {
	if f.file != nil {
		return nil
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("读取审计日志状态失败: %w", err)
	}
	f.file = file
	f.written = info.Size()
	return nil
}

// roll closes the active file, shifts existing backups one slot down and
// moves the active file into slot 1. The oldest backup falls off the end.
func (f *rollingFile) roll() error {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	f.written = 0

	for i := f.backups - 1; i >= 1; i-- {
		src := f.backupPath(i)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, f.backupPath(i+1))
		}
	}
	if _, err := os.Stat(f.path); err == nil {
		_ = os.Rename(f.path, f.backupPath(1))
	}

	f.pruneExpired()
	return nil
}

func (f *rollingFile) backupPath(slot int) string {
	return fmt.Sprintf("%s.%d", f.path, slot)
}

func (f *rollingFile) pruneExpired() {
	if f.retainFor <= 0 {
		return
	}
	cutoff := time.Now().Add(-f.retainFor)
	for i := 1; i <= f.backups; i++ {
		path := f.backupPath(i)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}

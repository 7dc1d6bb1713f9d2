// Package logger wires the process-wide structured loggers used across the
// assistant. A single Init call configures the application logger and an
// optional audit logger backed by a size-rotated file.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes the application logger behaviour.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig controls the dedicated audit trail output.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var global struct {
	mu      sync.Mutex
	app     *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
	ready   bool
}

// Init configures the global loggers. The first call wins; later calls are
// no-ops so that tests and libraries can call Init defensively.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.ready {
		return nil
	}

	handler, err := appHandler(cfg)
	if err != nil {
		return err
	}
	global.app = slog.New(handler)
	global.audit = global.app

	if cfg.Audit.Enabled {
		audit, err := auditLogger(cfg.Audit)
		if err != nil {
			return err
		}
		global.audit = audit
	}

	global.ready = true
	return nil
}

func appHandler(cfg Config) (slog.Handler, error) {
	sinks := cfg.OutputPaths
	if len(sinks) == 0 {
		sinks = []string{"stdout"}
	}

	writers := make([]io.Writer, 0, len(sinks))
	for _, sink := range sinks {
		writer, err := resolveSink(sink)
		if err != nil {
			return nil, err
		}
		writers = append(writers, writer)
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: levelFromString(cfg.Level), AddSource: true}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(out, opts), nil
	}
	return slog.NewJSONHandler(out, opts), nil
}

func auditLogger(cfg AuditConfig) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("审计日志路径不能为空")
	}
	writer, err := newRollingFile(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	if err != nil {
		return nil, err
	}
	global.closers = append(global.closers, writer)
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})), nil
}

// resolveSink maps an output path to a writer. File sinks are kept open for
// the process lifetime and closed by Sync.
func resolveSink(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败 %s: %w", path, err)
		}
		global.closers = append(global.closers, file)
		return file, nil
	}
}

func levelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the application logger, initialising defaults on first use.
func L() *slog.Logger {
	global.mu.Lock()
	ready := global.ready
	global.mu.Unlock()
	if !ready {
		_ = Init(Config{})
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.app
}

// Audit returns the audit logger. It falls back to the application logger
// when no dedicated audit output is configured.
func Audit() *slog.Logger {
	global.mu.Lock()
	audit := global.audit
	global.mu.Unlock()
	if audit == nil {
		return L()
	}
	return audit
}

// Named returns a child logger grouped under the given component name.
func Named(name string) *slog.Logger {
	return L().WithGroup(name)
}

// Sync closes any file-backed outputs opened by Init.
func Sync() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	var err error
	for _, closer := range global.closers {
		err = errors.Join(err, closer.Close())
	}
	global.closers = nil
	return err
}

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"uploadr/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer receives formatted output. Nil means stdout.
	Writer io.Writer
	// Extra handlers receive every record in addition to Writer.
	Extra []slog.Handler
}

// New builds a console or JSON logger. Debug level adds source locations.
func New(opts Options) (*slog.Logger, error) {
	level := ParseLevel(opts.Level)
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	addSource := level <= slog.LevelDebug

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(w, level, addSource)
	case "json":
		handler = newJSONHandler(w, level, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(tee(append([]slog.Handler{handler}, opts.Extra...)...)), nil
}

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// RunLog is the append-only JSON log file of a single run.
type RunLog struct {
	Path string
	file *os.File
}

// Close syncs and closes the file.
func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	syncErr := r.file.Sync()
	if err := r.file.Close(); err != nil {
		return err
	}
	return syncErr
}

// NewFromConfig returns a logger that writes the configured format to stdout
// and JSON records to uploadr-<runID>.log in the state log directory. The
// uploadr.log link is moved to the new file.
func NewFromConfig(cfg *config.Config, runID string) (*slog.Logger, *RunLog, error) {
	logDir := cfg.LogDir()
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure log directory: %w", err)
	}
	path := filepath.Join(logDir, "uploadr-"+runID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, nil, fmt.Errorf("open run log %s: %w", path, err)
	}

	logger, err := New(Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Extra:  []slog.Handler{newJSONHandler(file, ParseLevel(cfg.Logging.Level), false)},
	})
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	if err := linkCurrent(logDir, path); err != nil {
		WarnWithContext(logger, "log link not updated", "log_link_failed",
			Error(err),
			String(FieldErrorHint, "check permissions on the state log directory"),
			String(FieldImpact, "uploadr.log may point at an older run"),
		)
	}
	return logger, &RunLog{Path: path, file: file}, nil
}

func linkCurrent(logDir, target string) error {
	current := filepath.Join(logDir, "uploadr.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove log link: %w", err)
	}
	if err := os.Symlink(target, current); err != nil {
		if linkErr := os.Link(target, current); linkErr != nil {
			return fmt.Errorf("link log: %w", linkErr)
		}
	}
	return nil
}

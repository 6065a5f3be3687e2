package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneRunLogs deletes uploadr-*.log files in dir older than retentionDays,
// never touching keep. Zero days disables pruning. It returns the number of
// files removed.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, keep string) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	matches, err := filepath.Glob(filepath.Join(dir, "uploadr-*.log"))
	if err != nil {
		return 0
	}

	removed := 0
	for _, path := range matches {
		if path == keep {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old run log not removed", "log_retention_failed",
				String(FieldPath, path),
				Error(err),
				String(FieldErrorHint, "check ownership of the state log directory"),
				String(FieldImpact, "the file stays on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("old run logs pruned",
			String(FieldEventType, "logs_pruned"),
			Int("removed", removed),
			Int("retention_days", retentionDays),
		)
	}
	return removed
}

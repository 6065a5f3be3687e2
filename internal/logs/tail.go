package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	filePrefix = "uploadr-"
	fileSuffix = ".log"
	maxLine    = 1024 * 1024
)

// ErrNoLogs reports an empty log directory.
var ErrNoLogs = errors.New("no run logs found")

// PathForRun returns the log file written by runID.
func PathForRun(dir, runID string) string {
	return filepath.Join(dir, filePrefix+runID+fileSuffix)
}

// Resolve returns the log for runID, or the most recently modified run log
// when runID is empty. A run ID prefix is accepted when it is unambiguous.
func Resolve(dir, runID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoLogs
		}
		return "", fmt.Errorf("read log directory: %w", err)
	}

	runID = strings.TrimSpace(runID)
	var (
		match   string
		matches int
		newest  time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if runID != "" {
			if id == runID {
				return filepath.Join(dir, name), nil
			}
			if strings.HasPrefix(id, runID) {
				match = filepath.Join(dir, name)
				matches++
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if match == "" || info.ModTime().After(newest) {
			match = filepath.Join(dir, name)
			newest = info.ModTime()
		}
	}

	switch {
	case runID != "" && matches > 1:
		return "", fmt.Errorf("run id %q is ambiguous (%d logs)", runID, matches)
	case runID != "" && matches == 0:
		return "", fmt.Errorf("no log for run %q", runID)
	case match == "":
		return "", ErrNoLogs
	}
	return match, nil
}

// Last returns up to n trailing lines of path and the offset of its end.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var ring []string
	if n > 0 {
		ring = make([]string, 0, n)
	}
	scanner := newScanner(file)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return ring, offset, nil
}

// Since returns complete lines written after offset and the new offset. A
// trailing partial line is left for the next call. An offset past the end of a
// truncated file restarts from the beginning.
func Since(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, offset, nil
			}
			return lines, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

// Follow polls path from offset and calls emit for every new line until ctx is
// cancelled.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		lines, next, err := Since(path, offset)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		offset = next
		for _, line := range lines {
			emit(line)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return scanner
}

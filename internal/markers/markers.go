package markers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"

	"uploadr/internal/fileutil"
	"uploadr/internal/services"
)

const (
	runningName  = "running"
	inflightName = "inflight"
	shutdownName = "shutdown"

	archiveTimeFormat = "20060102T150405.000Z"
)

// Liveness is the informational payload of the running marker.
type Liveness struct {
	PID       int       `toml:"pid"`
	RunID     string    `toml:"run_id"`
	StartedAt time.Time `toml:"started_at"`
}

// StaleRun describes a running marker left behind by a process that no longer exists.
type StaleRun struct {
	Liveness
	// ArchivedAs is the path the stale marker was moved to.
	ArchivedAs string
	// InFlight is the upload that was outstanding when the process died, if any.
	// The remote side may hold an orphan photo for it.
	InFlight string
}

// State is a read-only snapshot of all markers.
type State struct {
	Running  *Liveness
	InFlight string
	Shutdown string
}

// Store manages marker files in a single directory.
type Store struct {
	dir   string
	pid   int
	now   func() time.Time
	alive func(pid int) bool
}

// Open prepares the marker directory.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("marker directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create marker directory: %w", err)
	}
	return &Store{
		dir:   dir,
		pid:   os.Getpid(),
		now:   time.Now,
		alive: processAlive,
	}, nil
}

// Dir returns the marker directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// BeginRun claims the liveness marker. It fails with services.ErrAlreadyRunning
// when the marker names a live process other than this one, leaving every
// marker untouched. A marker left by a dead process, or carrying our own pid
// from an earlier crash, is archived and returned as a StaleRun. On
// success the shutdown and in-flight markers are cleared.
func (s *Store) BeginRun(runID string) (*StaleRun, error) {
	current, exists, err := s.readLiveness()
	if err != nil {
		return nil, err
	}

	var stale *StaleRun
	if exists {
		if current.PID > 0 && current.PID != s.pid && s.alive(current.PID) {
			return nil, services.Wrap(services.ErrAlreadyRunning, "markers", "begin run",
				fmt.Sprintf("run %s (pid %d) holds the liveness marker", current.RunID, current.PID), nil)
		}
		stale = &StaleRun{Liveness: current}
		if path, ok := s.UploadInFlight(); ok {
			stale.InFlight = path
		}
		archived := s.path(runningName + ".stale-" + s.now().UTC().Format(archiveTimeFormat))
		if err := fileutil.RenameNoReplace(s.path(runningName), archived); err != nil {
			return nil, fmt.Errorf("archive stale liveness marker: %w", err)
		}
		stale.ArchivedAs = archived
	}

	if err := s.ClearShutdown(); err != nil {
		return stale, err
	}
	if err := s.MarkUploadEnded(); err != nil {
		return stale, err
	}
	payload, err := toml.Marshal(Liveness{PID: s.pid, RunID: runID, StartedAt: s.now().UTC()})
	if err != nil {
		return stale, fmt.Errorf("encode liveness marker: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path(runningName), payload, 0o644); err != nil {
		return stale, fmt.Errorf("write liveness marker: %w", err)
	}
	return stale, nil
}

// EndRun archives the liveness marker under a timestamped name. Missing marker is a no-op.
func (s *Store) EndRun() error {
	exists, err := fileutil.Exists(s.path(runningName))
	if err != nil || !exists {
		return err
	}
	archived := s.path(runningName + "." + s.now().UTC().Format(archiveTimeFormat))
	if err := fileutil.RenameNoReplace(s.path(runningName), archived); err != nil {
		return fmt.Errorf("archive liveness marker: %w", err)
	}
	return nil
}

// Running reports whether the liveness marker is present.
func (s *Store) Running() bool {
	exists, _ := fileutil.Exists(s.path(runningName))
	return exists
}

// MarkUploadStarted records path as the single outstanding upload.
func (s *Store) MarkUploadStarted(path string) error {
	if err := fileutil.WriteFileAtomic(s.path(inflightName), []byte(path+"\n"), 0o644); err != nil {
		return fmt.Errorf("write in-flight marker: %w", err)
	}
	return nil
}

// MarkUploadEnded clears the in-flight marker. Calling it when unset is a no-op.
func (s *Store) MarkUploadEnded() error {
	if err := fileutil.RemoveIfExists(s.path(inflightName)); err != nil {
		return fmt.Errorf("clear in-flight marker: %w", err)
	}
	return nil
}

// UploadInFlight returns the path recorded by MarkUploadStarted, if set.
func (s *Store) UploadInFlight() (string, bool) {
	data, err := os.ReadFile(s.path(inflightName))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// RequestShutdown sets the shutdown marker with reason as payload.
func (s *Store) RequestShutdown(reason string) error {
	if err := fileutil.WriteFileAtomic(s.path(shutdownName), []byte(reason+"\n"), 0o644); err != nil {
		return fmt.Errorf("write shutdown marker: %w", err)
	}
	return nil
}

// ShutdownRequested reports whether the shutdown marker is present.
func (s *Store) ShutdownRequested() bool {
	exists, _ := fileutil.Exists(s.path(shutdownName))
	return exists
}

// ClearShutdown removes the shutdown marker. Only BeginRun calls it during a run.
func (s *Store) ClearShutdown() error {
	if err := fileutil.RemoveIfExists(s.path(shutdownName)); err != nil {
		return fmt.Errorf("clear shutdown marker: %w", err)
	}
	return nil
}

// Snapshot reads all markers without modifying them.
func (s *Store) Snapshot() (State, error) {
	var state State
	live, exists, err := s.readLiveness()
	if err != nil {
		return state, err
	}
	if exists {
		state.Running = &live
	}
	state.InFlight, _ = s.UploadInFlight()
	if data, err := os.ReadFile(s.path(shutdownName)); err == nil {
		state.Shutdown = strings.TrimSpace(string(data))
		if state.Shutdown == "" {
			state.Shutdown = "requested"
		}
	}
	return state, nil
}

// Archived lists archived liveness markers, newest first.
func (s *Store) Archived() ([]string, error) {
	matches, err := filepath.Glob(s.path(runningName + ".*"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

// PruneArchived removes archived liveness markers older than retentionDays,
// judged by modification time. Zero days keeps everything.
func (s *Store) PruneArchived(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	archived, err := s.Archived()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	removed := 0
	var errs []error
	for _, path := range archived {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *Store) readLiveness() (Liveness, bool, error) {
	data, err := os.ReadFile(s.path(runningName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Liveness{}, false, nil
		}
		return Liveness{}, false, fmt.Errorf("read liveness marker: %w", err)
	}
	var live Liveness
	if err := toml.Unmarshal(data, &live); err != nil {
		// Unreadable content still counts as present; PID 0 marks it stale.
		return Liveness{}, true, nil
	}
	return live, true, nil
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

package markers_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"uploadr/internal/markers"
	"uploadr/internal/services"
)

func openStore(t *testing.T) *markers.Store {
	t.Helper()
	store, err := markers.Open(filepath.Join(t.TempDir(), "markers"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestBeginRunWritesLivenessAndClearsShutdown(t *testing.T) {
	store := openStore(t)
	if err := store.RequestShutdown("SIGTERM"); err != nil {
		t.Fatal(err)
	}

	stale, err := store.BeginRun("run-1")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if stale != nil {
		t.Fatalf("expected no stale run, got %+v", stale)
	}
	if store.ShutdownRequested() {
		t.Fatal("expected shutdown marker cleared by BeginRun")
	}
	state, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if state.Running == nil || state.Running.RunID != "run-1" || state.Running.PID != os.Getpid() {
		t.Fatalf("unexpected liveness payload: %+v", state.Running)
	}
}

func TestBeginRunFailsWhileLive(t *testing.T) {
	store := openStore(t)
	if _, err := store.BeginRun("run-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.RequestShutdown("SIGINT"); err != nil {
		t.Fatal(err)
	}

	other, err := markers.Open(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	other.SetPID(os.Getpid() + 1)
	other.SetAliveFunc(func(int) bool { return true })

	_, err = other.BeginRun("run-2")
	if !errors.Is(err, services.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if !store.ShutdownRequested() {
		t.Fatal("failed BeginRun must not touch other markers")
	}
	state, _ := store.Snapshot()
	if state.Running == nil || state.Running.RunID != "run-1" {
		t.Fatalf("liveness marker changed: %+v", state.Running)
	}
}

func TestBeginRunArchivesStaleMarker(t *testing.T) {
	store := openStore(t)
	if _, err := store.BeginRun("crashed"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkUploadStarted("/media/Album/img.jpg"); err != nil {
		t.Fatal(err)
	}
	store.SetAliveFunc(func(int) bool { return false })
	store.SetClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) })

	stale, err := store.BeginRun("fresh")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if stale == nil || stale.RunID != "crashed" {
		t.Fatalf("expected stale run report, got %+v", stale)
	}
	if stale.InFlight != "/media/Album/img.jpg" {
		t.Fatalf("expected leftover in-flight path, got %q", stale.InFlight)
	}
	if !strings.HasSuffix(stale.ArchivedAs, "running.stale-20260102T030405.000Z") {
		t.Fatalf("unexpected archive path %q", stale.ArchivedAs)
	}
	if _, ok := store.UploadInFlight(); ok {
		t.Fatal("expected in-flight marker cleared for the new run")
	}
}

func TestBeginRunTreatsOwnPIDAsStale(t *testing.T) {
	store := openStore(t)
	if _, err := store.BeginRun("crashed"); err != nil {
		t.Fatal(err)
	}
	store.SetAliveFunc(func(int) bool { return true })

	stale, err := store.BeginRun("restarted")
	if err != nil {
		t.Fatalf("BeginRun with own pid in marker: %v", err)
	}
	if stale == nil || stale.Liveness.RunID != "crashed" {
		t.Fatalf("expected crashed run reported as stale, got %+v", stale)
	}
	state, err := store.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if state.Running == nil || state.Running.RunID != "restarted" {
		t.Fatalf("unexpected liveness payload: %+v", state.Running)
	}
}

func TestBeginRunTreatsCorruptMarkerAsStale(t *testing.T) {
	store := openStore(t)
	if err := os.WriteFile(filepath.Join(store.Dir(), "running"), []byte("{{not toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale, err := store.BeginRun("fresh")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if stale == nil {
		t.Fatal("expected corrupt marker reported as stale")
	}
}

func TestEndRunArchivesWithTimestamp(t *testing.T) {
	store := openStore(t)
	store.SetClock(func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) })
	if _, err := store.BeginRun("run-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.EndRun(); err != nil {
		t.Fatalf("EndRun: %v", err)
	}
	if store.Running() {
		t.Fatal("expected liveness marker gone after EndRun")
	}
	archived, err := store.Archived()
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || filepath.Base(archived[0]) != "running.20260304T050607.000Z" {
		t.Fatalf("unexpected archive: %v", archived)
	}
	if err := store.EndRun(); err != nil {
		t.Fatalf("second EndRun should be a no-op: %v", err)
	}
	if _, err := store.BeginRun("run-2"); err != nil {
		t.Fatalf("BeginRun after EndRun: %v", err)
	}
}

func TestInFlightMarkerIsIdempotent(t *testing.T) {
	store := openStore(t)
	if err := store.MarkUploadEnded(); err != nil {
		t.Fatalf("clearing unset marker: %v", err)
	}
	if err := store.MarkUploadStarted("/media/a.jpg"); err != nil {
		t.Fatal(err)
	}
	path, ok := store.UploadInFlight()
	if !ok || path != "/media/a.jpg" {
		t.Fatalf("unexpected in-flight state %q %v", path, ok)
	}
	for i := 0; i < 2; i++ {
		if err := store.MarkUploadEnded(); err != nil {
			t.Fatalf("MarkUploadEnded #%d: %v", i, err)
		}
	}
	if _, ok := store.UploadInFlight(); ok {
		t.Fatal("expected in-flight marker cleared")
	}
}

func TestShutdownMarkerPayload(t *testing.T) {
	store := openStore(t)
	if store.ShutdownRequested() {
		t.Fatal("unexpected shutdown marker")
	}
	if err := store.RequestShutdown("SIGTERM"); err != nil {
		t.Fatal(err)
	}
	state, err := store.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if state.Shutdown != "SIGTERM" {
		t.Fatalf("unexpected shutdown payload %q", state.Shutdown)
	}
	if err := store.ClearShutdown(); err != nil {
		t.Fatal(err)
	}
	if store.ShutdownRequested() {
		t.Fatal("expected shutdown marker cleared")
	}
}

func TestPruneArchivedKeepsRecentMarkers(t *testing.T) {
	store := openStore(t)
	for _, id := range []string{"run-1", "run-2"} {
		if _, err := store.BeginRun(id); err != nil {
			t.Fatal(err)
		}
		if err := store.EndRun(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	archived, err := store.Archived()
	if err != nil || len(archived) != 2 {
		t.Fatalf("expected two archived markers, got %v (%v)", archived, err)
	}
	old := time.Now().AddDate(0, 0, -40)
	if err := os.Chtimes(archived[1], old, old); err != nil {
		t.Fatal(err)
	}

	if n, err := store.PruneArchived(0); err != nil || n != 0 {
		t.Fatalf("zero retention pruned %d (%v)", n, err)
	}
	n, err := store.PruneArchived(30)
	if err != nil || n != 1 {
		t.Fatalf("expected one marker pruned, got %d (%v)", n, err)
	}
	remaining, _ := store.Archived()
	if len(remaining) != 1 || remaining[0] != archived[0] {
		t.Fatalf("unexpected remaining markers %v", remaining)
	}
}

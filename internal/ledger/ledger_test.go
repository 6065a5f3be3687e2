package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"uploadr/internal/ledger"
)

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunLifecycle(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := l.BeginRun(ctx, "run-1", "once", started); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	runs, err := l.Runs(ctx, 5)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != ledger.RunActive || !runs[0].StartedAt.Equal(started) {
		t.Fatalf("unexpected active run: %+v", runs)
	}

	summary := ledger.Summary{Status: ledger.RunInterrupted, Passes: 2, Uploaded: 3, Failed: 1, AlbumsCreated: 1}
	if err := l.FinishRun(ctx, "run-1", summary); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	runs, err = l.Runs(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	got := runs[0]
	if got.Status != ledger.RunInterrupted || got.Uploaded != 3 || got.Failed != 1 || got.Passes != 2 || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected finished run: %+v", got)
	}

	if err := l.FinishRun(ctx, "absent", summary); err == nil {
		t.Fatal("expected error finishing unknown run")
	}
}

func TestRecordAndRecent(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	events := []ledger.Event{
		{RunID: "r", Pass: 1, Kind: ledger.EventPassStarted},
		{RunID: "r", Pass: 1, Kind: ledger.EventUploaded, Path: "/m/A/a.jpg", Album: "A-B", PhotoID: "42"},
		{RunID: "r", Pass: 1, Kind: ledger.EventAlbumFailed, Path: "/m/A/a.jpg", ErrorKind: "album_resolution_failed", Message: "boom"},
	}
	for _, evt := range events {
		if err := l.Record(ctx, evt); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Kind != ledger.EventAlbumFailed || recent[0].Message != "boom" {
		t.Fatalf("expected newest event first, got %+v", recent[0])
	}
	if recent[1].PhotoID != "42" || recent[1].Album != "A-B" || recent[1].At.IsZero() {
		t.Fatalf("unexpected uploaded event: %+v", recent[1])
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := ledger.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(context.Background(), ledger.Event{RunID: "r", Kind: ledger.EventShutdown}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	recent, err := reopened.Recent(context.Background(), 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("expected persisted event, got %v (err=%v)", recent, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := ledger.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.SetSchemaVersion(99); err != nil {
		t.Fatal(err)
	}
	_ = l.Close()

	_, err = ledger.Open(path)
	if !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

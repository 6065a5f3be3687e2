package shutdown_test

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"uploadr/internal/logging"
	"uploadr/internal/markers"
	"uploadr/internal/shutdown"
)

func openMarkers(t *testing.T) *markers.Store {
	t.Helper()
	store, err := markers.Open(filepath.Join(t.TempDir(), "markers"))
	if err != nil {
		t.Fatalf("markers.Open: %v", err)
	}
	return store
}

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after signal")
	}
}

func TestFirstSignalRequestsShutdown(t *testing.T) {
	store := openMarkers(t)
	signals := make(chan os.Signal, 1)
	exited := make(chan int, 1)
	coord := shutdown.New(store, logging.NewNop(),
		shutdown.WithSignals(signals),
		shutdown.WithExit(func(code int) { exited <- code }),
	)
	ctx, stop := coord.Watch(context.Background())
	defer stop()

	signals <- syscall.SIGTERM
	waitDone(t, ctx)

	if !store.ShutdownRequested() {
		t.Fatal("expected shutdown marker to be written")
	}
	state, err := store.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if state.Shutdown != "SIGTERM" {
		t.Fatalf("unexpected shutdown reason %q", state.Shutdown)
	}
	if coord.Reason() != "SIGTERM" {
		t.Fatalf("unexpected coordinator reason %q", coord.Reason())
	}
	select {
	case code := <-exited:
		t.Fatalf("unexpected forced exit %d", code)
	default:
	}
}

func TestSignalDuringUploadDefersAndSecondSignalForcesExit(t *testing.T) {
	store := openMarkers(t)
	if err := store.MarkUploadStarted("/media/Album/a.jpg"); err != nil {
		t.Fatal(err)
	}
	signals := make(chan os.Signal, 2)
	exited := make(chan int, 1)
	coord := shutdown.New(store, logging.NewNop(),
		shutdown.WithSignals(signals),
		shutdown.WithExit(func(code int) { exited <- code }),
	)
	ctx, stop := coord.Watch(context.Background())
	defer stop()

	signals <- syscall.SIGINT
	waitDone(t, ctx)
	if inflight, ok := store.UploadInFlight(); !ok || inflight != "/media/Album/a.jpg" {
		t.Fatalf("in-flight marker must be left to the uploader, got %q (%v)", inflight, ok)
	}

	signals <- syscall.SIGHUP
	select {
	case code := <-exited:
		if code != shutdown.ForcedExitCode {
			t.Fatalf("unexpected exit code %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not force exit")
	}
}

func TestStopCancelsWithoutMarker(t *testing.T) {
	store := openMarkers(t)
	coord := shutdown.New(store, logging.NewNop(), shutdown.WithSignals(make(chan os.Signal)))
	ctx, stop := coord.Watch(context.Background())
	stop()
	stop()
	waitDone(t, ctx)
	if store.ShutdownRequested() {
		t.Fatal("stop must not write the shutdown marker")
	}
	if coord.Reason() != "" {
		t.Fatalf("unexpected reason %q", coord.Reason())
	}
}

func TestSignalName(t *testing.T) {
	cases := map[os.Signal]string{
		syscall.SIGINT:  "SIGINT",
		syscall.SIGTERM: "SIGTERM",
		syscall.SIGHUP:  "SIGHUP",
	}
	for sig, want := range cases {
		if got := shutdown.SignalName(sig); got != want {
			t.Fatalf("SignalName(%v) = %q, want %q", sig, got, want)
		}
	}
}

package uploader_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"uploadr/internal/ledger"
	"uploadr/internal/markers"
	"uploadr/internal/media"
	"uploadr/internal/scanner"
	"uploadr/internal/services"
	"uploadr/internal/testsupport"
	"uploadr/internal/uploader"
)

type harness struct {
	root    string
	markers *markers.Store
	remote  *testsupport.FakeRemote
	ledger  *ledger.Ledger
	opts    uploader.Options
}

func newHarness(t *testing.T, albums ...uploader.Album) *harness {
	t.Helper()
	base := t.TempDir()
	store, err := markers.Open(filepath.Join(base, "markers"))
	if err != nil {
		t.Fatalf("markers.Open: %v", err)
	}
	return &harness{
		root:    filepath.Join(base, "media"),
		markers: store,
		remote:  testsupport.NewFakeRemote(albums...),
		opts: uploader.Options{
			Naming:   media.Naming{Prefix: "_f-"},
			Metadata: uploader.Metadata{Tags: []string{"auto-upload"}},
		},
	}
}

func (h *harness) orchestrator(t *testing.T) *uploader.Orchestrator {
	t.Helper()
	deps := uploader.Deps{
		Scanner: scanner.New(scanner.Options{
			Root:              h.root,
			AllowedExtensions: []string{"jpg"},
			AdminMarker:       "@",
			ProcessedPrefix:   "_f-",
			AlbumSeparator:    "-",
		}),
		Remote:  h.remote,
		Markers: h.markers,
	}
	if h.ledger != nil {
		deps.Ledger = h.ledger
	}
	orch, err := uploader.New(deps, h.opts)
	if err != nil {
		t.Fatalf("uploader.New: %v", err)
	}
	return orch
}

func (h *harness) runPass(t *testing.T, ctx context.Context) uploader.PassResult {
	t.Helper()
	result, err := h.orchestrator(t).RunPass(ctx)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	return result
}

func committedNames(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	for _, rel := range testsupport.ListFiles(t, root) {
		if strings.HasPrefix(filepath.Base(rel), "_f-") {
			out = append(out, rel)
		}
	}
	return out
}

func TestRunPassUploadsCommitsAndLinksAlbums(t *testing.T) {
	h := newHarness(t, uploader.Album{ID: "fam", Title: "Family"})
	testsupport.WriteMedia(t, h.root,
		"Family/c.jpg",
		"Trips/2024/Paris/a.jpg",
		"Trips/2024/Paris/b.jpg",
		"root.jpg",
	)

	result := h.runPass(t, context.Background())

	if result.Uploaded != 3 || result.Failed != 0 || result.AlbumsCreated != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Stopped != uploader.StopExhausted {
		t.Fatalf("expected exhausted pass, got %s", result.Stopped)
	}
	want := []string{
		"Family/_f-1001_c.jpg",
		"Trips/2024/Paris/_f-1002_a.jpg",
		"Trips/2024/Paris/_f-1003_b.jpg",
	}
	if got := committedNames(t, h.root); !slices.Equal(got, want) {
		t.Fatalf("committed files = %v, want %v", got, want)
	}
	if files := testsupport.ListFiles(t, h.root); !slices.Contains(files, "root.jpg") {
		t.Fatalf("root file should be untouched: %v", files)
	}
	if h.remote.ListCalls != 2 || h.remote.CreateCalls != 1 || h.remote.AddCalls != 2 {
		t.Fatalf("unexpected remote calls: list=%d create=%d add=%d", h.remote.ListCalls, h.remote.CreateCalls, h.remote.AddCalls)
	}
	if got := h.remote.Members("fam"); !slices.Equal(got, []string{"1001"}) {
		t.Fatalf("Family members = %v", got)
	}
	created := h.remote.Albums()[1]
	if created.Title != "Trips-2024-Paris" {
		t.Fatalf("unexpected created album %+v", created)
	}
	if got := h.remote.Members(created.ID); !slices.Equal(got, []string{"1002", "1003"}) {
		t.Fatalf("created album members = %v", got)
	}
	tags := h.remote.Uploads[1].Metadata.Tags
	if !slices.Equal(tags, []string{"auto-upload", "Trips-2024-Paris"}) {
		t.Fatalf("unexpected tags %v", tags)
	}
	if _, ok := h.markers.UploadInFlight(); ok {
		t.Fatal("in-flight marker left set after pass")
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg", "Album/b.jpg")

	first := h.runPass(t, context.Background())
	second := h.runPass(t, context.Background())

	if first.Uploaded != 2 {
		t.Fatalf("first pass uploaded %d", first.Uploaded)
	}
	if second.Attempted() != 0 || h.remote.UploadCount() != 2 {
		t.Fatalf("second pass re-uploaded: %+v (total uploads %d)", second, h.remote.UploadCount())
	}
}

func TestRenameFailureLeavesFilePending(t *testing.T) {
	h := newHarness(t)
	paths := testsupport.WriteMedia(t, h.root, "Album/a.jpg")
	// Occupy the checkpoint name so the commit cannot happen.
	testsupport.WriteMedia(t, h.root, "Album/_f-1001_a.jpg")

	result := h.runPass(t, context.Background())
	if result.RenameFailed != 1 || result.Uploaded != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	naming := media.Naming{Prefix: "_f-"}
	if naming.Status(filepath.Base(paths[0])) != media.StatusPending {
		t.Fatal("expected file to remain pending")
	}
	if files := testsupport.ListFiles(t, h.root); !slices.Contains(files, "Album/a.jpg") {
		t.Fatalf("expected original name to survive, got %v", files)
	}

	retry := h.runPass(t, context.Background())
	if retry.Uploaded != 1 || h.remote.UploadCount() != 2 {
		t.Fatalf("expected re-upload on next pass, got %+v uploads=%d", retry, h.remote.UploadCount())
	}
}

func TestTransferFailureContinuesWithNextFile(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg", "Album/b.jpg")
	h.remote.UploadHook = func(path string) error {
		if filepath.Base(path) == "a.jpg" {
			return errors.New("connection reset")
		}
		return nil
	}

	result := h.runPass(t, context.Background())
	if result.Failed != 1 || result.Uploaded != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	files := testsupport.ListFiles(t, h.root)
	if !slices.Contains(files, "Album/a.jpg") || !slices.Contains(files, "Album/_f-1001_b.jpg") {
		t.Fatalf("unexpected files after pass: %v", files)
	}
	if _, ok := h.markers.UploadInFlight(); ok {
		t.Fatal("in-flight marker must be cleared after a failed upload")
	}
}

func TestAlbumListingFailureAbortsPass(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg")
	h.remote.ListHook = func(int) error { return errors.New("503") }

	_, err := h.orchestrator(t).RunPass(context.Background())
	if !errors.Is(err, services.ErrAlbumListing) {
		t.Fatalf("expected ErrAlbumListing, got %v", err)
	}
	if services.Classify(err) != services.ScopePass {
		t.Fatalf("expected pass scope, got %s", services.Classify(err))
	}
	if h.remote.UploadCount() != 0 {
		t.Fatal("no uploads expected when album listing fails")
	}
}

func TestShutdownDuringAlbumListingStopsCleanly(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.remote.ListHook = func(int) error {
		if err := h.markers.RequestShutdown("SIGTERM"); err != nil {
			t.Fatal(err)
		}
		cancel()
		return context.Canceled
	}

	result, err := h.orchestrator(t).RunPass(ctx)
	if err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if result.Stopped != uploader.StopShutdown {
		t.Fatalf("expected StopShutdown, got %v", result.Stopped)
	}
	if h.remote.UploadCount() != 0 {
		t.Fatal("no uploads expected after shutdown")
	}
}

func TestAlbumFailureDoesNotFailFile(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg")
	h.remote.CreateHook = func(string) error { return errors.New("rate limited") }

	result := h.runPass(t, context.Background())
	if result.Uploaded != 1 || result.AlbumFailures != 1 || result.AlbumsCreated != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := committedNames(t, h.root); len(got) != 1 {
		t.Fatalf("expected file committed despite album failure, got %v", got)
	}
}

func TestMissingAlbumIsRecreated(t *testing.T) {
	h := newHarness(t, uploader.Album{ID: "gone", Title: "Album"})
	testsupport.WriteMedia(t, h.root, "Album/a.jpg")
	h.remote.AddHook = func(albumID, _ string) error {
		if albumID == "gone" {
			return services.Wrap(services.ErrTransferFailed, "fake", "add", albumID, uploader.ErrAlbumNotFound)
		}
		return nil
	}

	result := h.runPass(t, context.Background())
	if result.AlbumsCreated != 1 || result.AlbumFailures != 0 {
		t.Fatalf("expected album recreated, got %+v", result)
	}
}

func TestShutdownMidUploadCompletesCurrentFile(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg", "Album/b.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.remote.UploadHook = func(path string) error {
		inflight, ok := h.markers.UploadInFlight()
		if !ok || inflight != path {
			t.Errorf("expected in-flight marker for %s, got %q (%v)", path, inflight, ok)
		}
		if err := h.markers.RequestShutdown("SIGTERM"); err != nil {
			t.Errorf("RequestShutdown: %v", err)
		}
		cancel()
		return nil
	}

	result := h.runPass(t, ctx)
	if result.Stopped != uploader.StopShutdown {
		t.Fatalf("expected shutdown stop, got %s", result.Stopped)
	}
	if result.Uploaded != 1 || result.AlbumsCreated != 1 {
		t.Fatalf("expected the in-flight file to finish its transition, got %+v", result)
	}
	if got := committedNames(t, h.root); !slices.Equal(got, []string{"Album/_f-1001_a.jpg"}) {
		t.Fatalf("unexpected committed files %v", got)
	}
	if files := testsupport.ListFiles(t, h.root); !slices.Contains(files, "Album/b.jpg") {
		t.Fatalf("second file must not be touched: %v", files)
	}
	if _, ok := h.markers.UploadInFlight(); ok {
		t.Fatal("in-flight marker left set")
	}
}

func TestShutdownBeforePassDoesNothing(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg")
	if err := h.markers.RequestShutdown("SIGINT"); err != nil {
		t.Fatal(err)
	}

	result := h.runPass(t, context.Background())
	if result.Stopped != uploader.StopShutdown || h.remote.ListCalls != 0 || h.remote.UploadCount() != 0 {
		t.Fatalf("expected no work after shutdown, got %+v list=%d", result, h.remote.ListCalls)
	}
}

func TestMaxFilesCap(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg", "Album/b.jpg", "Album/c.jpg")
	h.opts.MaxFiles = 2

	result := h.runPass(t, context.Background())
	if result.Uploaded != 2 || result.Stopped != uploader.StopCap {
		t.Fatalf("unexpected result: %+v", result)
	}
	next := h.runPass(t, context.Background())
	if next.Uploaded != 1 || next.Stopped != uploader.StopExhausted {
		t.Fatalf("expected remaining file on next pass, got %+v", next)
	}
}

func TestDripFeedPausesBetweenUploads(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg", "Album/b.jpg", "Album/c.jpg")
	var waits []time.Duration
	h.opts.Drip = 30 * time.Second
	h.opts.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	result := h.runPass(t, context.Background())
	if result.Uploaded != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(waits) != 2 || waits[0] != 30*time.Second {
		t.Fatalf("expected two 30s pauses, got %v", waits)
	}
}

func TestDripInterruptedByShutdown(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteMedia(t, h.root, "Album/a.jpg", "Album/b.jpg")
	h.opts.Drip = time.Minute
	h.opts.Sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	result := h.runPass(t, context.Background())
	if result.Uploaded != 1 || result.Stopped != uploader.StopShutdown {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLedgerRecordsTransitions(t *testing.T) {
	h := newHarness(t)
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	h.ledger = l
	testsupport.WriteMedia(t, h.root, "Album/a.jpg")

	ctx := services.WithPass(services.WithRunID(context.Background(), "run-7"), 3)
	h.runPass(t, ctx)

	events, err := l.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	var kinds []ledger.EventKind
	for i := len(events) - 1; i >= 0; i-- {
		kinds = append(kinds, events[i].Kind)
		if events[i].RunID != "run-7" || events[i].Pass != 3 {
			t.Fatalf("event missing run context: %+v", events[i])
		}
	}
	want := []ledger.EventKind{ledger.EventPassStarted, ledger.EventUploaded, ledger.EventAlbumCreated, ledger.EventPassFinished}
	if !slices.Equal(kinds, want) {
		t.Fatalf("ledger kinds = %v, want %v", kinds, want)
	}
}

func TestMetadataTagString(t *testing.T) {
	meta := uploader.Metadata{Tags: []string{"auto-upload", "New York", "", "auto-upload", `say "hi"`}}
	if got := meta.TagString(); got != `auto-upload "New York" "say hi"` {
		t.Fatalf("unexpected tag string %q", got)
	}
}

package uploader

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"uploadr/internal/ledger"
	"uploadr/internal/logging"
	"uploadr/internal/media"
	"uploadr/internal/scanner"
	"uploadr/internal/services"
)

// Candidates is the scanner contract consumed by a pass.
type Candidates interface {
	Scan(ctx context.Context) iter.Seq2[scanner.Candidate, error]
}

// Markers is the subset of the marker store used during a pass.
type Markers interface {
	MarkUploadStarted(path string) error
	MarkUploadEnded() error
	ShutdownRequested() bool
}

// Recorder appends audit events. Failures are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, evt ledger.Event) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Scanner Candidates
	Remote  Remote
	Markers Markers
	Ledger  Recorder
	Logger  *slog.Logger
}

// Options tune a pass.
type Options struct {
	Naming   media.Naming
	Metadata Metadata
	// CaptureDateTag adds a taken-YYYY-MM-DD tag read from EXIF when available.
	CaptureDateTag bool
	// Drip is the pause inserted before every upload after the first in a pass.
	Drip time.Duration
	// MaxFiles caps upload attempts per pass. Zero means unlimited.
	MaxFiles int
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// StopReason explains why a pass ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopShutdown  StopReason = "shutdown"
	StopCap       StopReason = "cap"
)

// PassResult summarizes one pass.
type PassResult struct {
	Uploaded      int
	Failed        int
	RenameFailed  int
	AlbumFailures int
	Skipped       int
	AlbumsCreated int
	Stopped       StopReason
	Duration      time.Duration
}

// Attempted is the number of files that reached the Uploading state.
func (r PassResult) Attempted() int { return r.Uploaded + r.Failed + r.RenameFailed }

// Add accumulates another pass into r.
func (r *PassResult) Add(other PassResult) {
	r.Uploaded += other.Uploaded
	r.Failed += other.Failed
	r.RenameFailed += other.RenameFailed
	r.AlbumFailures += other.AlbumFailures
	r.Skipped += other.Skipped
	r.AlbumsCreated += other.AlbumsCreated
	r.Duration += other.Duration
	r.Stopped = other.Stopped
}

// Orchestrator runs upload passes. It is not safe for concurrent passes.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New validates deps and constructs an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Scanner == nil || deps.Remote == nil || deps.Markers == nil {
		return nil, errors.New("uploader requires scanner, remote, and markers")
	}
	if opts.Naming.Prefix == "" {
		return nil, errors.New("uploader requires a processed prefix")
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "uploader"),
	}, nil
}

type fileOutcome int

const (
	outcomeUploaded fileOutcome = iota
	outcomeFailed
	outcomeRenameFailed
)

// RunPass performs one scan pass. It returns an error only for pass-level
// failures (album listing); per-file failures are counted in the result. A
// listing failure caused by a shutdown request ends the pass with StopShutdown.
func (o *Orchestrator) RunPass(ctx context.Context) (PassResult, error) {
	started := time.Now()
	logger := logging.WithContext(ctx, o.logger)
	var result PassResult
	finish := func(reason StopReason) PassResult {
		result.Stopped = reason
		result.Duration = time.Since(started)
		return result
	}

	if o.stopRequested(ctx) {
		logger.Info("pass skipped; shutdown requested", logging.String(logging.FieldEventType, "pass_skipped"))
		return finish(StopShutdown), nil
	}

	albums, err := o.deps.Remote.ListAlbums(ctx)
	if err != nil && o.stopRequested(ctx) {
		logger.Info("pass stopped during album listing; shutdown requested",
			logging.String(logging.FieldEventType, "pass_skipped"),
			logging.String("listing_error", err.Error()),
		)
		return finish(StopShutdown), nil
	}
	if err != nil {
		wrapped := services.Wrap(services.ErrAlbumListing, "uploader", "list albums", "pass aborted", err)
		logging.WarnWithContext(logger, "album listing failed; pass aborted", "pass_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access and the cached token"),
			logging.String(logging.FieldImpact, "no files uploaded this pass"),
		)
		o.record(ctx, ledger.Event{Kind: ledger.EventPassAborted, ErrorKind: services.Kind(wrapped), Message: err.Error()})
		return finish(StopExhausted), wrapped
	}
	index := newAlbumIndex(albums)
	logger.Info("pass started",
		logging.String(logging.FieldEventType, "pass_started"),
		logging.Int("remote_albums", index.len()),
	)
	o.record(ctx, ledger.Event{Kind: ledger.EventPassStarted})

	reason := StopExhausted
	for candidate, scanErr := range o.deps.Scanner.Scan(ctx) {
		if scanErr != nil {
			logging.WarnWithContext(logger, "scan error", "scan_error",
				logging.Error(scanErr),
				logging.String(logging.FieldErrorHint, "check permissions under the media directory"),
				logging.String(logging.FieldImpact, "files in the unreadable directory are skipped this pass"),
			)
			continue
		}
		if o.stopRequested(ctx) {
			reason = StopShutdown
			break
		}
		if o.opts.Naming.Status(candidate.Name) == media.StatusUploaded {
			result.Skipped++
			continue
		}
		if o.opts.MaxFiles > 0 && result.Attempted() >= o.opts.MaxFiles {
			reason = StopCap
			break
		}
		if o.opts.Drip > 0 && result.Attempted() > 0 {
			logger.Debug("drip feed pause", logging.Duration("delay", o.opts.Drip))
			if err := o.opts.Sleep(ctx, o.opts.Drip); err != nil || o.stopRequested(ctx) {
				reason = StopShutdown
				break
			}
		}

		// Once selected, the file's transition must complete even if a shutdown arrives.
		fileCtx := services.WithPath(services.WithAlbum(context.WithoutCancel(ctx), candidate.Album), candidate.Path)
		switch o.processFile(fileCtx, candidate, index, &result) {
		case outcomeUploaded:
			result.Uploaded++
		case outcomeFailed:
			result.Failed++
		case outcomeRenameFailed:
			result.RenameFailed++
		}

		if o.stopRequested(ctx) {
			reason = StopShutdown
			break
		}
	}

	if reason == StopExhausted && o.stopRequested(ctx) {
		reason = StopShutdown
	}
	out := finish(reason)
	logger.Info("pass finished",
		logging.String(logging.FieldEventType, "pass_finished"),
		logging.String("stopped", string(out.Stopped)),
		logging.Int("uploaded", out.Uploaded),
		logging.Int("failed", out.Failed),
		logging.Int("rename_failed", out.RenameFailed),
		logging.Int("album_failures", out.AlbumFailures),
		logging.Int("skipped", out.Skipped),
		logging.Int("albums_created", out.AlbumsCreated),
		logging.Duration("duration", out.Duration),
	)
	o.record(ctx, ledger.Event{
		Kind: ledger.EventPassFinished,
		Message: fmt.Sprintf("stopped=%s uploaded=%d failed=%d rename_failed=%d skipped=%d albums_created=%d",
			out.Stopped, out.Uploaded, out.Failed, out.RenameFailed, out.Skipped, out.AlbumsCreated),
	})
	return out, nil
}

func (o *Orchestrator) stopRequested(ctx context.Context) bool {
	return ctx.Err() != nil || o.deps.Markers.ShutdownRequested()
}

func (o *Orchestrator) processFile(ctx context.Context, candidate scanner.Candidate, index *albumIndex, result *PassResult) fileOutcome {
	logger := logging.WithContext(ctx, o.logger)

	if err := o.deps.Markers.MarkUploadStarted(candidate.Path); err != nil {
		logging.ErrorWithContext(logger, "in-flight marker not written; upload skipped", "inflight_marker_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the state directory"),
		)
		o.record(ctx, ledger.Event{Kind: ledger.EventUploadFailed, Path: candidate.Path, Album: candidate.Album, Message: err.Error()})
		return outcomeFailed
	}
	defer o.endUpload(logger)

	logger.Debug("upload started", logging.String(logging.FieldEventType, "upload_started"), logging.Int64("size_bytes", candidate.Size))
	photoID, err := o.deps.Remote.UploadFile(ctx, candidate.Path, o.metadataFor(candidate, logger))
	if err != nil {
		logging.WarnWithContext(logger, "upload failed", "upload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check network access and the remote service status"),
			logging.String(logging.FieldImpact, "file stays pending and is retried on the next pass"),
		)
		o.record(ctx, ledger.Event{Kind: ledger.EventUploadFailed, Path: candidate.Path, Album: candidate.Album, ErrorKind: services.Kind(err), Message: err.Error()})
		return outcomeFailed
	}
	logger = logger.With(logging.String(logging.FieldPhotoID, photoID))

	outcome := outcomeUploaded
	committed, err := o.opts.Naming.Commit(candidate.Path, photoID)
	if err != nil {
		wrapped := services.Wrap(services.ErrRenameFailed, "uploader", "commit", "remote upload succeeded but checkpoint rename failed", err)
		logging.ErrorWithContext(logger, "checkpoint rename failed after successful upload", "checkpoint_rename_failed",
			logging.Error(wrapped),
			logging.String(logging.FieldErrorKind, services.Kind(wrapped)),
			logging.Alert("duplicate_upload_risk"),
			logging.String(logging.FieldErrorHint, "rename the file manually to "+o.checkpointHint(candidate.Name, photoID)),
		)
		o.record(ctx, ledger.Event{Kind: ledger.EventRenameFailed, Path: candidate.Path, Album: candidate.Album, PhotoID: photoID, ErrorKind: services.Kind(wrapped), Message: err.Error()})
		outcome = outcomeRenameFailed
	} else {
		logger.Info("upload committed",
			logging.String(logging.FieldEventType, "upload_committed"),
			logging.String("committed_path", committed),
		)
		o.record(ctx, ledger.Event{Kind: ledger.EventUploaded, Path: committed, Album: candidate.Album, PhotoID: photoID})
	}

	o.resolveAlbum(ctx, logger, candidate, photoID, index, result)
	return outcome
}

func (o *Orchestrator) endUpload(logger *slog.Logger) {
	if err := o.deps.Markers.MarkUploadEnded(); err != nil {
		logging.WarnWithContext(logger, "in-flight marker not cleared", "inflight_marker_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "the next run reports this file as a possible orphan upload"),
		)
	}
}

func (o *Orchestrator) checkpointHint(name, photoID string) string {
	target, err := o.opts.Naming.CheckpointName(name, photoID)
	if err != nil {
		return "<prefix><photo id>_" + name
	}
	return target
}

// resolveAlbum links photoID to the candidate's album, creating the album when
// it is not known. Failures leave the photo unlinked and never fail the file.
func (o *Orchestrator) resolveAlbum(ctx context.Context, logger *slog.Logger, candidate scanner.Candidate, photoID string, index *albumIndex, result *PassResult) {
	if albumID, ok := index.lookup(candidate.Album); ok {
		err := o.deps.Remote.AddPhotoToAlbum(ctx, albumID, photoID)
		if err == nil {
			logger.Debug("photo added to album",
				logging.String(logging.FieldEventType, "album_added"),
				logging.String(logging.FieldAlbumID, albumID),
			)
			o.record(ctx, ledger.Event{Kind: ledger.EventAlbumAdded, Path: candidate.Path, Album: candidate.Album, PhotoID: photoID, AlbumID: albumID})
			return
		}
		if !errors.Is(err, ErrAlbumNotFound) {
			o.albumFailed(ctx, logger, candidate, photoID, err, result)
			return
		}
		logger.Info("album vanished remotely; recreating",
			logging.String(logging.FieldEventType, "album_missing"),
			logging.String(logging.FieldAlbumID, albumID),
		)
		index.forget(candidate.Album)
	}

	albumID, err := o.deps.Remote.CreateAlbum(ctx, candidate.Album, photoID)
	if err != nil {
		o.albumFailed(ctx, logger, candidate, photoID, err, result)
		return
	}
	result.AlbumsCreated++
	logger.Info("album created",
		logging.String(logging.FieldEventType, "album_created"),
		logging.String(logging.FieldAlbumID, albumID),
	)
	o.record(ctx, ledger.Event{Kind: ledger.EventAlbumCreated, Path: candidate.Path, Album: candidate.Album, PhotoID: photoID, AlbumID: albumID})

	albums, err := o.deps.Remote.ListAlbums(ctx)
	if err != nil && o.stopRequested(ctx) {
		logger.Info("pass stopped during album listing; shutdown requested",
			logging.String(logging.FieldEventType, "pass_skipped"),
			logging.String("listing_error", err.Error()),
		)
		return finish(StopShutdown), nil
	}
	if err != nil {
		logging.WarnWithContext(logger, "album list refresh failed", "album_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access"),
			logging.String(logging.FieldImpact, "the new album id is used from the create response"),
		)
	} else {
		index.replace(albums)
	}
	if _, ok := index.lookup(candidate.Album); !ok {
		index.set(candidate.Album, albumID)
	}
}

func (o *Orchestrator) albumFailed(ctx context.Context, logger *slog.Logger, candidate scanner.Candidate, photoID string, err error, result *PassResult) {
	wrapped := services.Wrap(services.ErrAlbumResolution, "uploader", "resolve album", candidate.Album, err)
	result.AlbumFailures++
	logging.WarnWithContext(logger, "album resolution failed", "album_resolution_failed",
		logging.Error(wrapped),
		logging.String(logging.FieldErrorKind, services.Kind(wrapped)),
		logging.String(logging.FieldErrorHint, "add the photo to the album manually or check the remote service status"),
		logging.String(logging.FieldImpact, "photo uploaded but not linked to its album"),
	)
	o.record(ctx, ledger.Event{Kind: ledger.EventAlbumFailed, Path: candidate.Path, Album: candidate.Album, PhotoID: photoID, ErrorKind: services.Kind(wrapped), Message: err.Error()})
}

func (o *Orchestrator) metadataFor(candidate scanner.Candidate, logger *slog.Logger) Metadata {
	meta := o.opts.Metadata
	tags := make([]string, 0, len(meta.Tags)+2)
	tags = append(tags, meta.Tags...)
	tags = append(tags, candidate.Album)
	if o.opts.CaptureDateTag {
		switch media.Extension(candidate.Name) {
		case "jpg", "jpeg", "tif", "tiff":
			taken, err := media.CaptureDate(candidate.Path)
			if err != nil {
				logger.Debug("capture date unavailable", logging.Error(err))
			} else {
				tags = append(tags, media.DateTag(taken))
			}
		}
	}
	meta.Tags = tags
	return meta
}

func (o *Orchestrator) record(ctx context.Context, evt ledger.Event) {
	if o.deps.Ledger == nil {
		return
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		evt.RunID = id
	}
	if pass, ok := services.PassFromContext(ctx); ok {
		evt.Pass = pass
	}
	if err := o.deps.Ledger.Record(context.WithoutCancel(ctx), evt); err != nil {
		logging.WarnWithContext(o.logger, "ledger write failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database under the state directory"),
			logging.String(logging.FieldImpact, "history is incomplete; uploads are unaffected"),
		)
	}
}

// SplitTags splits a configured tag string on whitespace.
func SplitTags(tags string) []string {
	return strings.Fields(tags)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

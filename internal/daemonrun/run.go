package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"uploadr/internal/config"
	"uploadr/internal/flickr"
	"uploadr/internal/ledger"
	"uploadr/internal/logging"
	"uploadr/internal/markers"
	"uploadr/internal/media"
	"uploadr/internal/notifications"
	"uploadr/internal/preflight"
	"uploadr/internal/scanner"
	"uploadr/internal/services"
	"uploadr/internal/shutdown"
	"uploadr/internal/singleton"
	"uploadr/internal/uploader"
)

// Options configures process runtime behavior.
type Options struct {
	LogLevel string
	// Remote replaces the Flickr client. The token check is skipped when set.
	Remote uploader.Remote
	// Logger replaces the per-run logger built from the config.
	Logger *slog.Logger
	// Signals replaces OS signal delivery.
	Signals <-chan os.Signal
	// Exit replaces os.Exit on a forced second-signal shutdown.
	Exit func(int)
	// Sleep replaces the timer used between passes and drip-feed uploads.
	Sleep func(ctx context.Context, d time.Duration) error
	// Notifier replaces the ntfy service built from the config.
	Notifier notifications.Service
}

// Run executes one upload pass, or repeated passes in daemon mode, under the
// single-instance guard. It returns services.ErrAlreadyRunning without any
// side effect when another instance is active.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	guard, err := singleton.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if check := preflight.CheckDirectoryAccess("media directory", cfg.Paths.MediaDir); !check.Passed {
		return services.Wrap(services.ErrConfiguration, "daemonrun", "preflight", check.Detail, nil)
	}

	runID := uuid.NewString()
	ctx := services.WithRunID(cmdCtx, runID)
	started := time.Now()

	logger := opts.Logger
	if logger == nil {
		logCfg := *cfg
		if opts.LogLevel != "" {
			logCfg.Logging.Level = opts.LogLevel
		}
		var runLog *logging.RunLog
		logger, runLog, err = logging.NewFromConfig(&logCfg, runID)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer runLog.Close()
		logging.PruneRunLogs(logger, cfg.LogDir(), cfg.Logging.RetentionDays, runLog.Path)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	store, err := markers.Open(cfg.MarkerDir())
	if err != nil {
		return err
	}
	stale, err := store.BeginRun(runID)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := store.EndRun(); endErr != nil {
			logging.WarnWithContext(logger, "liveness marker not archived", "liveness_archive_failed",
				logging.Error(endErr),
				logging.String(logging.FieldErrorHint, "check permissions on the marker directory"),
				logging.String(logging.FieldImpact, "the next run treats this one as a crashed run"),
			)
		}
	}()

	if n, pruneErr := store.PruneArchived(cfg.Logging.RetentionDays); pruneErr != nil {
		logging.WarnWithContext(logger, "archived liveness markers not pruned", "marker_retention_failed",
			logging.Error(pruneErr),
			logging.String(logging.FieldErrorHint, "check permissions on the marker directory"),
			logging.String(logging.FieldImpact, "old markers stay on disk"),
		)
	} else if n > 0 {
		logger.Debug("archived liveness markers pruned", logging.Int("removed", n))
	}

	mode := "once"
	if cfg.Schedule.Daemon {
		mode = "daemon"
	}
	logRunSnapshot(logger, cfg, mode)

	var audit *ledger.Ledger
	if l, openErr := ledger.Open(cfg.LedgerPath()); openErr != nil {
		logging.WarnWithContext(logger, "ledger unavailable", "ledger_open_failed",
			logging.Error(openErr),
			logging.String(logging.FieldErrorHint, "check the ledger database under the state directory"),
			logging.String(logging.FieldImpact, "run history is not recorded; uploads are unaffected"),
		)
	} else {
		audit = l
		defer audit.Close()
		if beginErr := audit.BeginRun(ctx, runID, mode, time.Now()); beginErr != nil {
			logging.WarnWithContext(logger, "ledger run not recorded", "ledger_begin_failed",
				logging.Error(beginErr),
				logging.String(logging.FieldImpact, "run history is incomplete"),
			)
		}
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	report := runReport{logger: logger, audit: audit, notifier: notifier, runID: runID, started: started}

	if stale != nil {
		reportStaleRun(ctx, logger, audit, stale)
		report.notify(ctx, notifications.EventStaleRun, notifications.Payload{
			"runID":    stale.RunID,
			"inflight": stale.InFlight,
		})
	}

	remote := opts.Remote
	if remote == nil {
		client, clientErr := newFlickrClient(ctx, cfg, logger)
		if clientErr != nil {
			report.finish(ctx, uploader.PassResult{}, 0, clientErr, false)
			return clientErr
		}
		remote = client
	}

	coordOpts := []shutdown.Option{shutdown.WithExit(opts.Exit)}
	if opts.Signals != nil {
		coordOpts = append(coordOpts, shutdown.WithSignals(opts.Signals))
	}
	coord := shutdown.New(store, logger, coordOpts...)
	runCtx, stop := coord.Watch(ctx)
	defer stop()

	deps := uploader.Deps{
		Scanner: scanner.New(scanner.Options{
			Root:              cfg.Paths.MediaDir,
			AllowedExtensions: cfg.Scan.AllowedExtensions,
			ExcludedFragments: cfg.Scan.ExcludedFragments,
			AdminMarker:       cfg.Scan.AdminMarker,
			ProcessedPrefix:   cfg.Scan.ProcessedPrefix,
			AlbumSeparator:    cfg.Scan.AlbumSeparator,
			MaxFileSize:       cfg.Scan.MaxFileSize,
			Logger:            logger,
		}),
		Remote:  remote,
		Markers: store,
		Logger:  logger,
	}
	if audit != nil {
		deps.Ledger = audit
	}
	orch, err := uploader.New(deps, uploader.Options{
		Naming: media.Naming{Prefix: cfg.Scan.ProcessedPrefix},
		Metadata: uploader.Metadata{
			Title:       cfg.Upload.Title,
			Description: cfg.Upload.Description,
			Tags:        uploader.SplitTags(cfg.Upload.Tags),
			IsPublic:    cfg.Upload.IsPublic,
			IsFriend:    cfg.Upload.IsFriend,
			IsFamily:    cfg.Upload.IsFamily,
		},
		CaptureDateTag: cfg.Upload.CaptureDateTag,
		Drip:           cfg.DripInterval(),
		MaxFiles:       cfg.Schedule.MaxFilesPerPass,
		Sleep:          opts.Sleep,
	})
	if err != nil {
		return err
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		totals  uploader.PassResult
		passes  int
		passErr error
	)
loop:
	for {
		passes++
		result, err := orch.RunPass(services.WithPass(runCtx, passes))
		totals.Add(result)
		if err != nil {
			scope := services.Classify(err)
			if scope == services.ScopeProcess || !cfg.Schedule.Daemon {
				passErr = err
				break loop
			}
			logger.Info("pass failed; retrying after the pass interval",
				logging.String(logging.FieldEventType, "pass_retry_scheduled"),
				logging.Int(logging.FieldPass, passes),
				logging.String("scope", scope.String()),
				logging.String("error_kind", services.Kind(err)),
				logging.Duration("retry_in", cfg.SleepInterval()),
			)
		}
		if !cfg.Schedule.Daemon || result.Stopped == uploader.StopShutdown || stopping(runCtx, store) {
			break
		}
		logger.Debug("sleeping until next pass", logging.Duration("interval", cfg.SleepInterval()))
		if err := sleep(runCtx, cfg.SleepInterval()); err != nil || stopping(runCtx, store) {
			break
		}
	}

	interrupted := totals.Stopped == uploader.StopShutdown || stopping(runCtx, store)
	if reason := coord.Reason(); reason != "" && audit != nil {
		if recErr := audit.Record(context.WithoutCancel(ctx), ledger.Event{RunID: runID, Pass: passes, Kind: ledger.EventShutdown, Message: reason}); recErr != nil {
			logger.Debug("shutdown event not recorded", logging.Error(recErr))
		}
	}
	report.finish(ctx, totals, passes, passErr, interrupted)
	return passErr
}

func stopping(ctx context.Context, store *markers.Store) bool {
	return ctx.Err() != nil || store.ShutdownRequested()
}

func newFlickrClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*flickr.Client, error) {
	client, _, err := flickr.FromConfig(cfg, flickr.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	info, err := client.CheckToken(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("flickr token verified",
		logging.String(logging.FieldEventType, "token_verified"),
		logging.String("user", info.Username),
		logging.String("perms", info.Perms),
	)
	return client, nil
}

func reportStaleRun(ctx context.Context, logger *slog.Logger, audit *ledger.Ledger, stale *markers.StaleRun) {
	attrs := []logging.Attr{
		logging.String("stale_run_id", stale.RunID),
		logging.Int("stale_pid", stale.PID),
		logging.String("archived_as", stale.ArchivedAs),
		logging.String(logging.FieldErrorHint, "the previous run did not exit cleanly"),
	}
	impact := "none; no upload was in flight"
	if stale.InFlight != "" {
		impact = "the remote service may hold an orphan copy; the file will be uploaded again"
		attrs = append(attrs,
			logging.String(logging.FieldPath, stale.InFlight),
			logging.Alert("orphan_upload_risk"),
		)
	}
	attrs = append(attrs, logging.String(logging.FieldImpact, impact))
	logging.WarnWithContext(logger, "previous run ended without cleanup", "stale_run_detected", attrs...)

	if audit == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	evt := ledger.Event{
		RunID:   runID,
		Kind:    ledger.EventStaleRun,
		Path:    stale.InFlight,
		Message: fmt.Sprintf("run %s (pid %d) archived as %s", stale.RunID, stale.PID, stale.ArchivedAs),
	}
	if err := audit.Record(ctx, evt); err != nil {
		logger.Debug("stale run event not recorded", logging.Error(err))
	}
}

type runReport struct {
	logger   *slog.Logger
	audit    *ledger.Ledger
	notifier notifications.Service
	runID    string
	started  time.Time
}

func (r runReport) finish(ctx context.Context, totals uploader.PassResult, passes int, runErr error, interrupted bool) {
	status := ledger.RunCompleted
	switch {
	case runErr != nil:
		status = ledger.RunFailed
	case interrupted:
		status = ledger.RunInterrupted
	}
	summary := ledger.Summary{
		Status:        status,
		Passes:        passes,
		Uploaded:      totals.Uploaded,
		Failed:        totals.Failed + totals.RenameFailed,
		Skipped:       totals.Skipped,
		AlbumsCreated: totals.AlbumsCreated,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	r.logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("status", string(status)),
		logging.Int("passes", passes),
		logging.Int("uploaded", totals.Uploaded),
		logging.Int("failed", summary.Failed),
		logging.Int("albums_created", totals.AlbumsCreated),
	)

	if runErr != nil {
		r.notify(ctx, notifications.EventRunFailed, notifications.Payload{
			"context": "upload run",
			"error":   runErr,
		})
	} else {
		r.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
			"uploaded":      totals.Uploaded,
			"failed":        summary.Failed,
			"albumsCreated": totals.AlbumsCreated,
			"duration":      time.Since(r.started),
		})
	}

	if r.audit == nil {
		return
	}
	if err := r.audit.FinishRun(context.WithoutCancel(ctx), r.runID, summary); err != nil {
		logging.WarnWithContext(r.logger, "ledger run not finalized", "ledger_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history shows this run as active"),
		)
	}
}

func (r runReport) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := r.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(r.logger, "notification not delivered", "notification_failed",
			logging.Error(err),
			logging.String("notification", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "none; uploads are unaffected"),
		)
	}
}

func logRunSnapshot(logger *slog.Logger, cfg *config.Config, mode string) {
	logger.Info("run starting",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("mode", mode),
		logging.String("media_dir", cfg.Paths.MediaDir),
		logging.Int("pid", os.Getpid()),
		logging.Bool("drip_feed", cfg.Schedule.DripFeed),
		logging.Duration("drip_interval", cfg.DripInterval()),
		logging.Int("max_files_per_pass", cfg.Schedule.MaxFilesPerPass),
		logging.Duration("sleep_interval", cfg.SleepInterval()),
		logging.String("extensions", fmt.Sprint(cfg.Scan.AllowedExtensions)),
	)
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

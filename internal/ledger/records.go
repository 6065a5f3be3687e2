package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStatus is the terminal state recorded for a run.
type RunStatus string

const (
	RunActive      RunStatus = "active"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)

// EventKind classifies a ledger event.
type EventKind string

const (
	EventPassStarted  EventKind = "pass_started"
	EventPassFinished EventKind = "pass_finished"
	EventPassAborted  EventKind = "pass_aborted"
	EventUploaded     EventKind = "uploaded"
	EventUploadFailed EventKind = "upload_failed"
	EventRenameFailed EventKind = "rename_failed"
	EventAlbumCreated EventKind = "album_created"
	EventAlbumAdded   EventKind = "album_added"
	EventAlbumFailed  EventKind = "album_failed"
	EventShutdown     EventKind = "shutdown_requested"
	EventStaleRun     EventKind = "stale_run"
)

// Run is one row of the runs table.
type Run struct {
	ID            string
	Mode          string
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	Passes        int
	Uploaded      int
	Failed        int
	Skipped       int
	AlbumsCreated int
	Error         string
}

// Summary is the outcome written by FinishRun.
type Summary struct {
	Status        RunStatus
	Passes        int
	Uploaded      int
	Failed        int
	Skipped       int
	AlbumsCreated int
	Error         string
}

// Event is one state transition or notable occurrence within a run.
type Event struct {
	ID        int64
	RunID     string
	Pass      int
	At        time.Time
	Kind      EventKind
	Path      string
	Album     string
	PhotoID   string
	AlbumID   string
	ErrorKind string
	Message   string
}

// BeginRun inserts an active run row.
func (l *Ledger) BeginRun(ctx context.Context, id, mode string, started time.Time) error {
	_, err := l.exec(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, RunActive, started.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (l *Ledger) FinishRun(ctx context.Context, id string, summary Summary) error {
	status := summary.Status
	if status == "" {
		status = RunCompleted
	}
	res, err := l.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, passes = ?, uploaded = ?, failed = ?,
            skipped = ?, albums_created = ?, error_message = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(timeLayout),
		summary.Passes,
		summary.Uploaded,
		summary.Failed,
		summary.Skipped,
		summary.AlbumsCreated,
		nullableString(summary.Error),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run: no run with id %q", id)
	}
	return nil
}

// Record appends an event. A zero At is stamped with the current time.
func (l *Ledger) Record(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	_, err := l.exec(ctx,
		`INSERT INTO events (run_id, pass, at, kind, path, album, photo_id, album_id, error_kind, message)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.RunID,
		evt.Pass,
		evt.At.UTC().Format(timeLayout),
		evt.Kind,
		nullableString(evt.Path),
		nullableString(evt.Album),
		nullableString(evt.PhotoID),
		nullableString(evt.AlbumID),
		nullableString(evt.ErrorKind),
		nullableString(evt.Message),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, pass, at, kind, path, album, photo_id, album_id, error_kind, message
         FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt                                               Event
			at                                                sql.NullString
			kind                                              string
			path, album, photoID, albumID, errorKind, message sql.NullString
		)
		if err := rows.Scan(&evt.ID, &evt.RunID, &evt.Pass, &at, &kind, &path, &album, &photoID, &albumID, &errorKind, &message); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.At = parseTime(at)
		evt.Kind = EventKind(kind)
		evt.Path = path.String
		evt.Album = album.String
		evt.PhotoID = photoID.String
		evt.AlbumID = albumID.String
		evt.ErrorKind = errorKind.String
		evt.Message = message.String
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Runs returns up to limit runs, most recently started first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ensureContext(ctx),
		`SELECT id, mode, status, started_at, finished_at, passes, uploaded, failed, skipped, albums_created, error_message
         FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			status            string
			started, finished sql.NullString
			errorMessage      sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Mode, &status, &started, &finished, &run.Passes,
			&run.Uploaded, &run.Failed, &run.Skipped, &run.AlbumsCreated, &errorMessage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = RunStatus(status)
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.Error = errorMessage.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

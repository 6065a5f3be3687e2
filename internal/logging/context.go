package logging

import (
	"context"
	"log/slog"

	"uploadr/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. upload_committed).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldRunID is the standardized key for the run identifier.
	FieldRunID = "run_id"
	// FieldPass is the 1-based pass number within a run.
	FieldPass = "pass"
	// FieldAlbum is the album name derived from the file's directory.
	FieldAlbum = "album"
	// FieldPath is the media file path.
	FieldPath = "path"
	// FieldPhotoID is the remote identifier assigned to an uploaded file.
	FieldPhotoID = "photo_id"
	// FieldAlbumID is the remote identifier of an album.
	FieldAlbumID = "album_id"
	// FieldErrorKind is the stable label of a classified failure.
	FieldErrorKind = "error_kind"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if pass, ok := services.PassFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldPass, pass))
	}
	if album, ok := services.AlbumFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAlbum, album))
	}
	if path, ok := services.PathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPath, path))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(args(fields)...)
}

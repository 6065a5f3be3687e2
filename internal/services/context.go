package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	passKey  contextKey = "pass"
	albumKey contextKey = "album"
	pathKey  contextKey = "path"
)

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPass annotates context with the 1-based pass number within a run.
func WithPass(ctx context.Context, pass int) context.Context {
	return context.WithValue(ctx, passKey, pass)
}

// PassFromContext returns the pass number if present.
func PassFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(passKey).(int)
	return v, ok
}

// WithAlbum annotates context with the album derived for the current file.
func WithAlbum(ctx context.Context, album string) context.Context {
	if album == "" {
		return ctx
	}
	return context.WithValue(ctx, albumKey, album)
}

// AlbumFromContext returns the album name if present.
func AlbumFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(albumKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPath annotates context with the media file being processed.
func WithPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, pathKey, path)
}

// PathFromContext returns the media file path if present.
func PathFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(pathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

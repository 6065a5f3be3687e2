// Package scanner walks the media root and yields upload candidates.
//
// Every call to Scan re-walks the tree in lexical order; no cursor is
// persisted between passes. Directory rules are evaluated on the path relative
// to the media root so the location of the root itself never triggers an
// exclusion.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"uploadr/internal/logging"
	"uploadr/internal/media"
)

// Options configures traversal rules.
type Options struct {
	Root              string
	AllowedExtensions []string
	ExcludedFragments []string
	AdminMarker       string
	ProcessedPrefix   string
	AlbumSeparator    string
	// MaxFileSize skips larger files. Zero disables the limit.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Candidate is a file selected for upload consideration.
type Candidate struct {
	Album  string
	Path   string
	RelDir string
	Name   string
	Size   int64
}

// Scanner produces candidates from a media tree.
type Scanner struct {
	opts    Options
	allowed map[string]struct{}
	logger  *slog.Logger
}

// New constructs a Scanner. Extensions are matched case-insensitively.
func New(opts Options) *Scanner {
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	if opts.AlbumSeparator == "" {
		opts.AlbumSeparator = "-"
	}
	return &Scanner{
		opts:    opts,
		allowed: allowed,
		logger:  logging.NewComponentLogger(opts.Logger, "scanner"),
	}
}

// Scan lazily yields candidates. Errors for unreadable directories are yielded
// and the walk continues past them; a missing root yields a single error.
// Symlinked directories are followed; a directory already visited under
// another path is skipped. Cancelling ctx ends the sequence at the next entry.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		root := filepath.Clean(s.opts.Root)
		resolved, err := filepath.EvalSymlinks(root)
		if err == nil {
			_, err = os.Stat(resolved)
		}
		if err != nil {
			yield(Candidate{}, fmt.Errorf("media root: %w", err))
			return
		}
		w := walker{
			Scanner: s,
			ctx:     ctx,
			root:    root,
			visited: map[string]struct{}{resolved: {}},
			yield:   yield,
		}
		w.dir(root, resolved)
	}
}

type walker struct {
	*Scanner
	ctx     context.Context
	root    string
	visited map[string]struct{}
	yield   func(Candidate, error) bool
}

// dir walks one directory in lexical order. It returns false once the walk
// must stop.
func (w *walker) dir(path, resolved string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return w.yield(Candidate{}, fmt.Errorf("walk %s: %w", path, err))
	}
	for _, entry := range entries {
		if w.ctx.Err() != nil {
			return false
		}
		child := filepath.Join(path, entry.Name())
		rel, relErr := filepath.Rel(w.root, child)
		if relErr != nil {
			continue
		}
		childResolved, isDir, err := w.resolveDir(entry, child, filepath.Join(resolved, entry.Name()))
		if err != nil {
			if !w.yield(Candidate{}, err) {
				return false
			}
			continue
		}
		if !isDir {
			candidate, ok := w.consider(child, filepath.Dir(rel), entry)
			if ok && !w.yield(candidate, nil) {
				return false
			}
			continue
		}
		if w.excludedDir(filepath.ToSlash(rel)) {
			w.logger.Debug("directory excluded", logging.String(logging.FieldPath, child))
			continue
		}
		if _, seen := w.visited[childResolved]; seen {
			w.logger.Debug("directory already visited; skipped",
				logging.String(logging.FieldPath, child),
				logging.String("target", childResolved),
			)
			continue
		}
		w.visited[childResolved] = struct{}{}
		if !w.dir(child, childResolved) {
			return false
		}
	}
	return true
}

// resolveDir reports whether entry is a directory, following symlinks, and its
// resolved path. A symlink to a file or a dangling symlink is not a directory.
func (w *walker) resolveDir(entry fs.DirEntry, path, resolved string) (string, bool, error) {
	if entry.IsDir() {
		return resolved, true, nil
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return "", false, nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false, nil
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", path, err)
	}
	return target, true, nil
}

// Collect drains a scan into a slice, returning the first error encountered
// alongside everything yielded before and after it.
func (s *Scanner) Collect(ctx context.Context) ([]Candidate, error) {
	var (
		out      []Candidate
		firstErr error
	)
	for candidate, err := range s.Scan(ctx) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, candidate)
	}
	return out, firstErr
}

func (s *Scanner) excludedDir(rel string) bool {
	if s.opts.AdminMarker != "" && strings.Contains(rel, s.opts.AdminMarker) {
		return true
	}
	for _, fragment := range s.opts.ExcludedFragments {
		if fragment != "" && strings.Contains(rel, fragment) {
			return true
		}
	}
	return s.opts.ProcessedPrefix != "" && strings.Contains(rel, s.opts.ProcessedPrefix)
}

func (s *Scanner) consider(path, relDir string, d fs.DirEntry) (Candidate, bool) {
	album := AlbumName(relDir, s.opts.AlbumSeparator)
	if len(album) <= 1 {
		return Candidate{}, false
	}
	name := d.Name()
	if _, ok := s.allowed[media.Extension(name)]; !ok {
		return Candidate{}, false
	}
	naming := media.Naming{Prefix: s.opts.ProcessedPrefix}
	if naming.HasPrefix(name) {
		return Candidate{}, false
	}
	info, err := regularFileInfo(path, d)
	if err != nil {
		s.logger.Debug("file skipped",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
		)
		return Candidate{}, false
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		s.logger.Debug("file exceeds size limit",
			logging.String(logging.FieldPath, path),
			logging.Int64("size_bytes", info.Size()),
			logging.Int64("limit_bytes", s.opts.MaxFileSize),
		)
		return Candidate{}, false
	}
	return Candidate{
		Album:  album,
		Path:   path,
		RelDir: filepath.ToSlash(relDir),
		Name:   name,
		Size:   info.Size(),
	}, true
}

func regularFileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("symlink target is not a regular file")
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, fmt.Errorf("not a regular file")
	}
	return d.Info()
}

// AlbumName joins the segments of a root-relative directory with sep. The root
// itself maps to "". Names are NFC-normalized so the same directory always maps
// to the same album regardless of how the file system encodes it.
func AlbumName(relDir, sep string) string {
	relDir = filepath.ToSlash(filepath.Clean(relDir))
	if relDir == "." || relDir == "" {
		return ""
	}
	parts := slices.DeleteFunc(strings.Split(relDir, "/"), func(p string) bool { return p == "" })
	return norm.NFC.String(strings.Join(parts, sep))
}

package uploader

import (
	"context"
	"errors"
	"strings"
)

// ErrAlbumNotFound reports that an album id no longer exists remotely.
var ErrAlbumNotFound = errors.New("album not found")

// Metadata is applied to every uploaded file.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	IsPublic    bool
	IsFriend    bool
	IsFamily    bool
}

// TagString joins tags with spaces, quoting multi-word tags.
func (m Metadata) TagString() string {
	parts := make([]string, 0, len(m.Tags))
	seen := make(map[string]struct{}, len(m.Tags))
	for _, tag := range m.Tags {
		tag = strings.TrimSpace(strings.ReplaceAll(tag, `"`, ""))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		if strings.ContainsAny(tag, " \t") {
			tag = `"` + tag + `"`
		}
		parts = append(parts, tag)
	}
	return strings.Join(parts, " ")
}

// Album is a remote album as returned by ListAlbums.
type Album struct {
	ID    string
	Title string
}

// Remote is the photo service capability set the orchestrator depends on.
type Remote interface {
	UploadFile(ctx context.Context, path string, meta Metadata) (string, error)
	ListAlbums(ctx context.Context) ([]Album, error)
	CreateAlbum(ctx context.Context, name, primaryPhotoID string) (string, error)
	AddPhotoToAlbum(ctx context.Context, albumID, photoID string) error
}

package testsupport

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"uploadr/internal/services"
	"uploadr/internal/uploader"
)

// Upload records one successful UploadFile call.
type Upload struct {
	Path     string
	PhotoID  string
	Metadata uploader.Metadata
}

// FakeRemote is an in-memory uploader.Remote. Hooks run before the default
// behaviour; a non-nil error from a hook fails the call.
type FakeRemote struct {
	mu sync.Mutex

	albums  []uploader.Album
	members map[string][]string
	nextID  int

	Uploads     []Upload
	ListCalls   int
	CreateCalls int
	AddCalls    int

	UploadHook func(path string) error
	ListHook   func(call int) error
	CreateHook func(name string) error
	AddHook    func(albumID, photoID string) error
}

// NewFakeRemote seeds the fake with existing albums.
func NewFakeRemote(albums ...uploader.Album) *FakeRemote {
	return &FakeRemote{
		albums:  append([]uploader.Album(nil), albums...),
		members: make(map[string][]string),
		nextID:  1000,
	}
}

func (f *FakeRemote) UploadFile(_ context.Context, path string, meta uploader.Metadata) (string, error) {
	if f.UploadHook != nil {
		if err := f.UploadHook(path); err != nil {
			return "", services.Wrap(services.ErrTransferFailed, "fake", "upload", path, err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.Uploads = append(f.Uploads, Upload{Path: path, PhotoID: id, Metadata: meta})
	return id, nil
}

func (f *FakeRemote) ListAlbums(context.Context) ([]uploader.Album, error) {
	f.mu.Lock()
	f.ListCalls++
	call := f.ListCalls
	f.mu.Unlock()
	if f.ListHook != nil {
		if err := f.ListHook(call); err != nil {
			return nil, services.Wrap(services.ErrTransferFailed, "fake", "list albums", "", err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uploader.Album(nil), f.albums...), nil
}

func (f *FakeRemote) CreateAlbum(_ context.Context, name, primaryPhotoID string) (string, error) {
	f.mu.Lock()
	f.CreateCalls++
	f.mu.Unlock()
	if f.CreateHook != nil {
		if err := f.CreateHook(name); err != nil {
			return "", services.Wrap(services.ErrTransferFailed, "fake", "create album", name, err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("set-%d", len(f.albums)+1)
	f.albums = append(f.albums, uploader.Album{ID: id, Title: name})
	f.members[id] = []string{primaryPhotoID}
	return id, nil
}

func (f *FakeRemote) AddPhotoToAlbum(_ context.Context, albumID, photoID string) error {
	f.mu.Lock()
	f.AddCalls++
	f.mu.Unlock()
	if f.AddHook != nil {
		if err := f.AddHook(albumID, photoID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[albumID]; !ok && !f.hasAlbum(albumID) {
		return services.Wrap(services.ErrTransferFailed, "fake", "add photo", albumID, uploader.ErrAlbumNotFound)
	}
	f.members[albumID] = append(f.members[albumID], photoID)
	return nil
}

func (f *FakeRemote) hasAlbum(id string) bool {
	for _, a := range f.albums {
		if a.ID == id {
			return true
		}
	}
	return false
}

// RemoveAlbum deletes an album as if it were removed through the web UI.
func (f *FakeRemote) RemoveAlbum(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.albums[:0]
	for _, a := range f.albums {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.albums = kept
	delete(f.members, id)
}

// Albums returns a snapshot of remote albums.
func (f *FakeRemote) Albums() []uploader.Album {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uploader.Album(nil), f.albums...)
}

// Members returns the photo ids linked to an album, primary first.
func (f *FakeRemote) Members(albumID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[albumID]...)
}

// UploadCount returns the number of successful uploads.
func (f *FakeRemote) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Uploads)
}

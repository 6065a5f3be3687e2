package uploader

// albumIndex maps album titles to remote ids for the duration of a pass.
type albumIndex struct {
	byTitle map[string]string
}

func newAlbumIndex(albums []Album) *albumIndex {
	idx := &albumIndex{byTitle: make(map[string]string, len(albums))}
	idx.replace(albums)
	return idx
}

// replace rebuilds the index. When titles repeat, the first album listed wins.
func (a *albumIndex) replace(albums []Album) {
	clear(a.byTitle)
	for _, album := range albums {
		if album.Title == "" || album.ID == "" {
			continue
		}
		if _, exists := a.byTitle[album.Title]; !exists {
			a.byTitle[album.Title] = album.ID
		}
	}
}

func (a *albumIndex) lookup(title string) (string, bool) {
	id, ok := a.byTitle[title]
	return id, ok
}

func (a *albumIndex) set(title, id string) { a.byTitle[title] = id }

func (a *albumIndex) forget(title string) { delete(a.byTitle, title) }

func (a *albumIndex) len() int { return len(a.byTitle) }

package flickr

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"uploadr/internal/services"
	"uploadr/internal/uploader"
)

const (
	albumPageSize = 500
	// errPhotosetNotFound is the addPhoto error code for an unknown photoset.
	errPhotosetNotFound = 1
)

type photosetListResponse struct {
	Photosets struct {
		Page     flexInt `json:"page"`
		Pages    flexInt `json:"pages"`
		Photoset []struct {
			ID    string  `json:"id"`
			Title content `json:"title"`
		} `json:"photoset"`
	} `json:"photosets"`
}

// ListAlbums returns every photoset owned by the authenticated user in the
// order Flickr reports them. Pages are fetched until exhausted.
func (c *Client) ListAlbums(ctx context.Context) ([]uploader.Album, error) {
	var albums []uploader.Album
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(albumPageSize))

		var resp photosetListResponse
		if err := c.callWithRetry(ctx, "flickr.photosets.getList", params, &resp); err != nil {
			if tokenRejected(err) {
				return nil, services.Wrap(services.ErrConfiguration, "flickr", "list albums", "token rejected; run 'uploadr auth'", err)
			}
			return nil, transferFailed("list albums", err)
		}
		for _, set := range resp.Photosets.Photoset {
			albums = append(albums, uploader.Album{ID: set.ID, Title: set.Title.Content})
		}
		if int(resp.Photosets.Pages) <= page || len(resp.Photosets.Photoset) == 0 {
			return albums, nil
		}
	}
}

// CreateAlbum creates a photoset with primaryPhotoID as its cover and first member.
func (c *Client) CreateAlbum(ctx context.Context, name, primaryPhotoID string) (string, error) {
	params := url.Values{}
	params.Set("title", name)
	params.Set("primary_photo_id", primaryPhotoID)

	var resp struct {
		Photoset struct {
			ID string `json:"id"`
		} `json:"photoset"`
	}
	if err := c.Call(ctx, http.MethodPost, "flickr.photosets.create", params, &resp); err != nil {
		return "", transferFailed("create album", err)
	}
	if resp.Photoset.ID == "" {
		return "", services.Wrap(services.ErrTransferFailed, "flickr", "create album", "response carried no photoset id", nil)
	}
	return resp.Photoset.ID, nil
}

// AddPhotoToAlbum adds photoID to albumID. An unknown album maps to
// uploader.ErrAlbumNotFound.
func (c *Client) AddPhotoToAlbum(ctx context.Context, albumID, photoID string) error {
	params := url.Values{}
	params.Set("photoset_id", albumID)
	params.Set("photo_id", photoID)

	err := c.Call(ctx, http.MethodPost, "flickr.photosets.addPhoto", params, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == errPhotosetNotFound {
		return services.Wrap(services.ErrTransferFailed, "flickr", "add photo", "album "+albumID, errors.Join(uploader.ErrAlbumNotFound, err))
	}
	return transferFailed("add photo", err)
}

package flickr

import (
	"errors"

	"uploadr/internal/config"
)

// FromConfig builds a client from the loaded configuration and installs the
// cached token when one exists. A missing token is not an error here;
// CheckToken reports it.
func FromConfig(cfg *config.Config, opts ...Option) (*Client, *TokenStore, error) {
	store := NewTokenStore(cfg.TokenPath())
	token, err := store.Load()
	if err != nil && !errors.Is(err, ErrNoToken) {
		return nil, store, err
	}
	client, err := New(Config{
		APIKey:    cfg.Flickr.APIKey,
		Secret:    cfg.Flickr.Secret,
		RestURL:   cfg.Flickr.RestURL,
		UploadURL: cfg.Flickr.UploadURL,
		AuthURL:   cfg.Flickr.AuthURL,
		Perms:     cfg.Flickr.Perms,
		Timeout:   cfg.RequestTimeout(),
	}, append([]Option{WithToken(token)}, opts...)...)
	if err != nil {
		return nil, store, err
	}
	return client, store, nil
}

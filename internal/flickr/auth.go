package flickr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"uploadr/internal/fileutil"
	"uploadr/internal/services"
)

// ErrNoToken reports that no cached token exists yet.
var ErrNoToken = errors.New("no cached flickr token")

// TokenInfo describes a validated auth token.
type TokenInfo struct {
	Token    string
	Perms    string
	UserID   string
	Username string
}

type authResponse struct {
	Auth struct {
		Token content `json:"token"`
		Perms content `json:"perms"`
		User  struct {
			NSID     string `json:"nsid"`
			Username string `json:"username"`
		} `json:"user"`
	} `json:"auth"`
}

func (r authResponse) info() TokenInfo {
	return TokenInfo{
		Token:    r.Auth.Token.Content,
		Perms:    r.Auth.Perms.Content,
		UserID:   r.Auth.User.NSID,
		Username: r.Auth.User.Username,
	}
}

// GetFrob starts the desktop auth handshake.
func (c *Client) GetFrob(ctx context.Context) (string, error) {
	var resp struct {
		Frob content `json:"frob"`
	}
	if err := c.Call(ctx, http.MethodGet, "flickr.auth.getFrob", nil, &resp); err != nil {
		return "", transferFailed("get frob", err)
	}
	if resp.Frob.Content == "" {
		return "", services.Wrap(services.ErrTransferFailed, "flickr", "get frob", "response carried no frob", nil)
	}
	return resp.Frob.Content, nil
}

// AuthURL builds the page the user visits to grant access for frob.
func (c *Client) AuthURL(frob string) string {
	params := url.Values{}
	params.Set("frob", frob)
	params.Set("perms", c.cfg.Perms)
	signed := c.signed(params, false)
	return c.cfg.AuthURL + "?" + signed.Encode()
}

// GetToken exchanges an authorized frob for a token and installs it on the client.
func (c *Client) GetToken(ctx context.Context, frob string) (TokenInfo, error) {
	params := url.Values{}
	params.Set("frob", frob)
	var resp authResponse
	if err := c.Call(ctx, http.MethodGet, "flickr.auth.getToken", params, &resp); err != nil {
		return TokenInfo{}, transferFailed("get token", err)
	}
	info := resp.info()
	if info.Token == "" {
		return TokenInfo{}, services.Wrap(services.ErrTransferFailed, "flickr", "get token", "response carried no token", nil)
	}
	c.SetToken(info.Token)
	return info, nil
}

// CheckToken validates the installed token. A missing token is a configuration
// problem; a rejected token is reported as an APIError inside ErrConfiguration.
func (c *Client) CheckToken(ctx context.Context) (TokenInfo, error) {
	if c.token == "" {
		return TokenInfo{}, services.Wrap(services.ErrConfiguration, "flickr", "check token", "no auth token; run 'uploadr auth'", ErrNoToken)
	}
	var resp authResponse
	if err := c.callWithRetry(ctx, "flickr.auth.checkToken", nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return TokenInfo{}, services.Wrap(services.ErrConfiguration, "flickr", "check token", "token rejected; run 'uploadr auth'", err)
		}
		return TokenInfo{}, transferFailed("check token", err)
	}
	return resp.info(), nil
}

// TokenStore caches the auth token as a single-line file.
type TokenStore struct {
	path string
}

// NewTokenStore builds a TokenStore at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the cache file location.
func (s *TokenStore) Path() string { return s.path }

// Load reads the cached token. A missing file returns ErrNoToken.
func (s *TokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read flickr token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Save persists token with owner-only permissions.
func (s *TokenStore) Save(token string) error {
	if err := fileutil.WriteFileAtomic(s.path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write flickr token: %w", err)
	}
	return nil
}

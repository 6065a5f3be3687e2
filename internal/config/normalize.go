package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables honoured as fallbacks when the file leaves a value empty.
const (
	EnvMediaDir = "FLICKR_UPLOADR_FILES_DIR"
	EnvTokenDir = "FLICKR_UPLOADR_TOKEN_DIR"
	EnvAPIKey   = "FLICKR_API_KEY"
	EnvSecret   = "FLICKR_SECRET"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFlickr()
	c.normalizeScan()
	c.normalizeUpload()
	c.normalizeSchedule()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		if value, ok := os.LookupEnv(EnvMediaDir); ok {
			c.Paths.MediaDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.TokenDir) == "" || c.Paths.TokenDir == defaultTokenDir {
		if value, ok := os.LookupEnv(EnvTokenDir); ok && strings.TrimSpace(value) != "" {
			c.Paths.TokenDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.TokenDir) == "" {
		c.Paths.TokenDir = defaultTokenDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.MediaDir, err = expandPath(strings.TrimSpace(c.Paths.MediaDir)); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.TokenDir, err = expandPath(c.Paths.TokenDir); err != nil {
		return fmt.Errorf("paths.token_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFlickr() {
	if c.Flickr.APIKey == "" {
		if value, ok := os.LookupEnv(EnvAPIKey); ok {
			c.Flickr.APIKey = value
		}
	}
	if c.Flickr.Secret == "" {
		if value, ok := os.LookupEnv(EnvSecret); ok {
			c.Flickr.Secret = value
		}
	}
	c.Flickr.APIKey = strings.TrimSpace(c.Flickr.APIKey)
	c.Flickr.Secret = strings.TrimSpace(c.Flickr.Secret)
	c.Flickr.RestURL = defaultString(c.Flickr.RestURL, defaultRestURL)
	c.Flickr.UploadURL = defaultString(c.Flickr.UploadURL, defaultUploadURL)
	c.Flickr.AuthURL = defaultString(c.Flickr.AuthURL, defaultAuthURL)
	c.Flickr.Perms = strings.ToLower(defaultString(c.Flickr.Perms, defaultPerms))
}

func (c *Config) normalizeScan() {
	exts := make([]string, 0, len(c.Scan.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Scan.AllowedExtensions))
	for _, ext := range c.Scan.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Scan.AllowedExtensions = exts

	fragments := c.Scan.ExcludedFragments[:0]
	for _, fragment := range c.Scan.ExcludedFragments {
		if trimmed := strings.TrimSpace(fragment); trimmed != "" {
			fragments = append(fragments, trimmed)
		}
	}
	c.Scan.ExcludedFragments = fragments

	c.Scan.AdminMarker = defaultString(c.Scan.AdminMarker, defaultAdminMarker)
	c.Scan.ProcessedPrefix = defaultString(c.Scan.ProcessedPrefix, defaultProcessedPrefix)
	if c.Scan.AlbumSeparator == "" {
		c.Scan.AlbumSeparator = defaultAlbumSeparator
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Title = strings.TrimSpace(c.Upload.Title)
	c.Upload.Description = strings.TrimSpace(c.Upload.Description)
	c.Upload.Tags = strings.Join(strings.Fields(c.Upload.Tags), " ")
}

func (c *Config) normalizeSchedule() {
	if c.Schedule.SleepSeconds <= 0 {
		c.Schedule.SleepSeconds = defaultSleepSeconds
	}
	if c.Schedule.DripSeconds < 0 {
		c.Schedule.DripSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MediaDir string `toml:"media_dir"`
	StateDir string `toml:"state_dir"`
	TokenDir string `toml:"token_dir"`
}

// Flickr contains remote photo service credentials and endpoints.
type Flickr struct {
	APIKey         string `toml:"api_key"`
	Secret         string `toml:"secret"`
	RestURL        string `toml:"rest_url"`
	UploadURL      string `toml:"upload_url"`
	AuthURL        string `toml:"auth_url"`
	Perms          string `toml:"perms"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Scan contains the directory traversal rules.
type Scan struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
	ExcludedFragments []string `toml:"excluded_fragments"`
	AdminMarker       string   `toml:"admin_marker"`
	ProcessedPrefix   string   `toml:"processed_prefix"`
	AlbumSeparator    string   `toml:"album_separator"`
	MaxFileSize       int64    `toml:"max_file_size"`
}

// Upload contains metadata applied to every uploaded photo.
type Upload struct {
	Title          string `toml:"title"`
	Description    string `toml:"description"`
	Tags           string `toml:"tags"`
	IsPublic       bool   `toml:"is_public"`
	IsFriend       bool   `toml:"is_friend"`
	IsFamily       bool   `toml:"is_family"`
	CaptureDateTag bool   `toml:"capture_date_tag"`
}

// Schedule contains pass pacing and run mode settings.
type Schedule struct {
	Daemon          bool `toml:"daemon"`
	SleepSeconds    int  `toml:"sleep_seconds"`
	DripFeed        bool `toml:"drip_feed"`
	DripSeconds     int  `toml:"drip_seconds"`
	MaxFilesPerPass int  `toml:"max_files_per_pass"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications configures optional ntfy push messages.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for uploadr.
//
// Configuration sections by subsystem:
//   - Paths: media root, run state and token cache directories
//   - Flickr: API credentials and endpoints
//   - Scan: extension allow-list and directory exclusion rules
//   - Upload: title, description, tags and visibility flags
//   - Schedule: run-once vs daemon, drip feed and per-pass cap
//   - Logging: log format, level, and retention
//   - Notifications: ntfy topic for run summaries and alerts
//
// A Config is built once at startup and treated as read-only afterwards.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Flickr        Flickr        `toml:"flickr"`
	Scan          Scan          `toml:"scan"`
	Upload        Upload        `toml:"upload"`
	Schedule      Schedule      `toml:"schedule"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("uploadr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and token directories. The media
// directory is never created; it must already exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LogDir(), c.MarkerDir(), c.Paths.TokenDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the advisory lock file guarding single-instance execution.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "uploadr.lock")
}

// MarkerDir returns the directory holding run-state marker files.
func (c *Config) MarkerDir() string {
	return filepath.Join(c.Paths.StateDir, "markers")
}

// LogDir returns the directory holding run logs.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// LedgerPath returns the SQLite run log location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// TokenPath returns the cached auth token location.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Paths.TokenDir, "flickrToken")
}

// SleepInterval is the pause between daemon passes.
func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.Schedule.SleepSeconds) * time.Second
}

// DripInterval is the pause between individual uploads. Zero when drip feed is off.
func (c *Config) DripInterval() time.Duration {
	if !c.Schedule.DripFeed {
		return 0
	}
	return time.Duration(c.Schedule.DripSeconds) * time.Second
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// RequestTimeout bounds a single remote request. Zero leaves the transport default.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Flickr.RequestTimeout) * time.Second
}

// WithOverrides returns a copy of the config with command-line overrides applied.
// Empty strings leave the configured values untouched; tags are appended.
func (c *Config) WithOverrides(o Overrides) *Config {
	clone := *c
	clone.Scan.AllowedExtensions = append([]string(nil), c.Scan.AllowedExtensions...)
	clone.Scan.ExcludedFragments = append([]string(nil), c.Scan.ExcludedFragments...)
	if title := strings.TrimSpace(o.Title); title != "" {
		clone.Upload.Title = title
	}
	if desc := strings.TrimSpace(o.Description); desc != "" {
		clone.Upload.Description = desc
	}
	if tags := strings.TrimSpace(o.Tags); tags != "" {
		clone.Upload.Tags = strings.TrimSpace(clone.Upload.Tags + " " + tags)
	}
	if o.Daemon {
		clone.Schedule.Daemon = true
	}
	if o.DripFeed {
		clone.Schedule.DripFeed = true
	}
	if o.MaxFiles > 0 {
		clone.Schedule.MaxFilesPerPass = o.MaxFiles
	}
	return &clone
}

// Overrides carries command-line values layered over the loaded config.
type Overrides struct {
	Title       string
	Description string
	Tags        string
	Daemon      bool
	DripFeed    bool
	MaxFiles    int
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

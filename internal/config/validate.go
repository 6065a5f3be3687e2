package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"uploadr/internal/services"
)

// Validate ensures the configuration is usable. Missing required values wrap
// services.ErrConfiguration so callers can map them to a dedicated exit code.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFlickr(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if c.Paths.MediaDir == "" {
		return missing("paths.media_dir", EnvMediaDir)
	}
	info, err := os.Stat(c.Paths.MediaDir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "paths.media_dir", "media directory is not accessible", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "config", "paths.media_dir", fmt.Sprintf("%s is not a directory", c.Paths.MediaDir), nil)
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateFlickr() error {
	if c.Flickr.APIKey == "" {
		return missing("flickr.api_key", EnvAPIKey)
	}
	if c.Flickr.Secret == "" {
		return missing("flickr.secret", EnvSecret)
	}
	switch c.Flickr.Perms {
	case "read", "write", "delete":
	default:
		return fmt.Errorf("flickr.perms must be one of read, write, delete (got %q)", c.Flickr.Perms)
	}
	if c.Flickr.RequestTimeout < 0 {
		return errors.New("flickr.request_timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateScan() error {
	if len(c.Scan.AllowedExtensions) == 0 {
		return errors.New("scan.allowed_extensions must list at least one extension")
	}
	if strings.ContainsAny(c.Scan.ProcessedPrefix, `/\`) {
		return errors.New("scan.processed_prefix must not contain path separators")
	}
	if c.Scan.MaxFileSize < 0 {
		return errors.New("scan.max_file_size must be >= 0")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.MaxFilesPerPass < 0 {
		return errors.New("schedule.max_files_per_pass must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func missing(key, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	msg := fmt.Sprintf("%s is required. Set %s or edit %s (create with 'uploadr config init')", key, env, defaultPath)
	return services.Wrap(services.ErrConfiguration, "config", "", msg, nil)
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL (got %q)", topic)
	}
	return nil
}

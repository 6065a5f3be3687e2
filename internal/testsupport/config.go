package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"uploadr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The media directory exists and is empty; credentials are placeholders.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.TokenDir = filepath.Join(base, "token")
	cfgVal.Flickr.APIKey = "test-key"
	cfgVal.Flickr.Secret = "test-secret"
	cfgVal.Schedule.SleepSeconds = 1
	cfgVal.Logging.RetentionDays = 0

	if err := os.MkdirAll(cfgVal.Paths.MediaDir, 0o755); err != nil {
		t.Fatalf("mkdir media dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDaemon enables daemon mode with the given pass interval.
func WithDaemon(sleepSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Schedule.Daemon = true
		b.cfg.Schedule.SleepSeconds = sleepSeconds
	}
}

// WithMaxFiles caps uploads per pass.
func WithMaxFiles(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Schedule.MaxFilesPerPass = n
	}
}

// WithToken writes a cached auth token into the token directory.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		path := b.cfg.TokenPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("mkdir token dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
			b.t.Fatalf("write token: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.MediaDir)
}

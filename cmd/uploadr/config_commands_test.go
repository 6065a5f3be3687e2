package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	writeToken(t, env.cfg, "valid-token")

	out, err := runCLI(t, env.configPath, "", "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "[ok] Media directory: "+env.cfg.Paths.MediaDir)

	out, err = runCLI(t, env.configPath, "", "config", "validate", "--remote")
	if err != nil {
		t.Fatalf("config validate --remote: %v", err)
	}
	requireContains(t, out, "[ok] Flickr account: pat")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, "", "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, err := runCLI(t, "", "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsMissingToken(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "", "config", "validate")
	if exitCode(err) != exitConfiguration {
		t.Fatalf("expected configuration exit code, got %d (%v)", exitCode(err), err)
	}
	requireContains(t, out, "[FAIL] Auth token")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "media_dir")
	if strings.Contains(out, env.cfg.Flickr.Secret) {
		t.Fatalf("secret leaked in %q", out)
	}
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"abc":         "***",
		"test-secret": "te*******et",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Fatalf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}

package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"uploadr/internal/flickr"
	"uploadr/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTokenCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flickrToken")
	if CheckTokenCached(path).Passed {
		t.Fatal("expected failure without a cached token")
	}
	if err := flickr.NewTokenStore(path).Save("tok"); err != nil {
		t.Fatal(err)
	}
	if result := CheckTokenCached(path); !result.Passed {
		t.Fatalf("expected pass with cached token, got %s", result.Detail)
	}
}

type stubChecker struct {
	info flickr.TokenInfo
	err  error
}

func (s stubChecker) CheckToken(context.Context) (flickr.TokenInfo, error) {
	return s.info, s.err
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithToken("tok"))
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, stubChecker{info: flickr.TokenInfo{Username: "pat", Perms: "delete"}})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	results = RunAll(context.Background(), cfg, stubChecker{err: errors.New("token rejected")})
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Flickr account" {
		t.Fatalf("expected remote check failure, got %+v", failed)
	}
}

func TestLocalReportsMissingStateDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failed := Failed(Local(cfg))
	if len(failed) != 2 {
		t.Fatalf("expected state dir and token failures, got %+v", failed)
	}
}

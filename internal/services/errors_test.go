package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"uploadr/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransferFailed, "flickr", "upload", "remote rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransferFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"flickr", "upload", "remote rejected"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want services.Scope
	}{
		{services.Wrap(services.ErrAlreadyRunning, "singleton", "acquire", "", nil), services.ScopeProcess},
		{services.Wrap(services.ErrConfiguration, "config", "", "missing", nil), services.ScopeProcess},
		{services.Wrap(services.ErrAlbumListing, "uploader", "list albums", "", errors.New("503")), services.ScopePass},
		{services.Wrap(services.ErrTransferFailed, "flickr", "upload", "", nil), services.ScopeFile},
		{services.Wrap(services.ErrRenameFailed, "media", "commit", "", nil), services.ScopeFile},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrAlbumListing, "", "", "", nil)), services.ScopePass},
		{errors.New("unclassified"), services.ScopeFile},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestKindLabels(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrRenameFailed, "", "", "", nil)); got != "rename_failed" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"uploadr/internal/config"
	"uploadr/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	flickr     *fakeFlickr
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	for _, key := range []string{config.EnvMediaDir, config.EnvTokenDir, config.EnvAPIKey, config.EnvSecret} {
		t.Setenv(key, "")
	}
	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))

	fake := newFakeFlickr(t)
	cfg.Flickr.RestURL = fake.server.URL + "/rest/"
	cfg.Flickr.UploadURL = fake.server.URL + "/upload/"
	cfg.Flickr.AuthURL = fake.server.URL + "/auth/"

	configPath := filepath.Join(testsupport.BaseDir(cfg), "uploadr.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, flickr: fake}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeToken(t *testing.T, cfg *config.Config, token string) {
	t.Helper()
	if err := os.MkdirAll(cfg.Paths.TokenDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.TokenPath(), []byte(token+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func runCLI(t *testing.T, configPath string, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	flags := []string{"--log-level", "error"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// fakeFlickr serves the subset of the Flickr API uploadr calls.
type fakeFlickr struct {
	server *httptest.Server

	mu      sync.Mutex
	token   string
	albums  map[string]string
	nextID  int
	uploads []string
}

func newFakeFlickr(t *testing.T) *fakeFlickr {
	t.Helper()
	f := &fakeFlickr{token: "valid-token", albums: map[string]string{}, nextID: 7000}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeFlickr) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/upload/" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("photo")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		f.uploads = append(f.uploads, header.Filename)
		fmt.Fprintf(w, `<rsp stat="ok"><photoid>%d</photoid></rsp>`, f.nextID)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	authOK := r.Form.Get("auth_token") == f.token
	switch r.Form.Get("method") {
	case "flickr.auth.checkToken":
		if !authOK {
			fmt.Fprint(w, `{"stat":"fail","code":98,"message":"Invalid auth token"}`)
			return
		}
		fmt.Fprintf(w, `{"stat":"ok","auth":{"token":{"_content":%q},"perms":{"_content":"delete"},"user":{"nsid":"1@N0","username":"pat"}}}`, f.token)
	case "flickr.auth.getFrob":
		fmt.Fprint(w, `{"stat":"ok","frob":{"_content":"frob-9"}}`)
	case "flickr.auth.getToken":
		if r.Form.Get("frob") != "frob-9" {
			fmt.Fprint(w, `{"stat":"fail","code":108,"message":"Invalid frob"}`)
			return
		}
		fmt.Fprintf(w, `{"stat":"ok","auth":{"token":{"_content":%q},"perms":{"_content":"delete"},"user":{"nsid":"1@N0","username":"pat"}}}`, f.token)
	case "flickr.photosets.getList":
		var sets []string
		for title, id := range f.albums {
			sets = append(sets, fmt.Sprintf(`{"id":%q,"title":{"_content":%q}}`, id, title))
		}
		fmt.Fprintf(w, `{"stat":"ok","photosets":{"page":1,"pages":1,"photoset":[%s]}}`, strings.Join(sets, ","))
	case "flickr.photosets.create":
		id := fmt.Sprintf("set-%d", len(f.albums)+1)
		f.albums[r.Form.Get("title")] = id
		fmt.Fprintf(w, `{"stat":"ok","photoset":{"id":%q}}`, id)
	case "flickr.photosets.addPhoto":
		fmt.Fprint(w, `{"stat":"ok"}`)
	default:
		fmt.Fprintf(w, `{"stat":"fail","code":112,"message":"Method %q not found"}`, r.Form.Get("method"))
	}
}

func (f *fakeFlickr) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/repoview/pkg/config"
	"github.com/vanderheijden86/repoview/pkg/testutil"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	return testutil.TempTree(t, map[string]string{
		"README.md":     "# Hi\n",
		"lib/x.rb":      "puts 1\n",
		"lib/sub/y.rb":  "puts 2\n",
		"docs/guide.md": "guide\n",
	})
}

func TestResolveSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = "https://git.example.com"
	cfg.Server.Root = "/group/app/-/tree/main"
	cfg.Sources = []config.Source{
		{Name: "docs", URL: "https://docs.example.com", Root: "/d/-/tree/master"},
		{Name: "home", Path: "/srv/home"},
		{Name: "wiki", URL: "https://wiki.example.com/w/-/tree/main", Root: "/ignored/-/tree/old"},
	}

	tests := []struct {
		name                         string
		url, local, root, source     string
		wantBase, wantRoot, wantPath string
	}{
		{name: "local flag", local: "/tmp/x", wantPath: "/tmp/x"},
		{name: "tree url", url: "https://h.example.com/a/b/-/tree/main", wantBase: "https://h.example.com", wantRoot: "/a/b/-/tree/main"},
		{name: "tree url with root flag", url: "https://h.example.com/a/b/-/tree/main", root: "/r/-/tree/dev", wantBase: "https://h.example.com", wantRoot: "/r/-/tree/dev"},
		{name: "url with root", url: "https://h.example.com", root: "/r/-/tree/dev", wantBase: "https://h.example.com", wantRoot: "/r/-/tree/dev"},
		{name: "url falls back to server root", url: "https://h.example.com", wantBase: "https://h.example.com", wantRoot: "/group/app/-/tree/main"},
		{name: "named remote", source: "DOCS", wantBase: "https://docs.example.com", wantRoot: "/d/-/tree/master"},
		{name: "named tree url", source: "wiki", wantBase: "https://wiki.example.com", wantRoot: "/w/-/tree/main"},
		{name: "named local", source: "home", wantPath: "/srv/home"},
		{name: "server section", wantBase: "https://git.example.com", wantRoot: "/group/app/-/tree/main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveSource(cfg, tt.url, tt.local, tt.root, tt.source)
			if err != nil {
				t.Fatalf("resolveSource failed: %v", err)
			}
			if got.BaseURL != tt.wantBase || got.Root != tt.wantRoot || got.Path != tt.wantPath {
				t.Errorf("expected base=%q root=%q path=%q, got %+v", tt.wantBase, tt.wantRoot, tt.wantPath, got)
			}
		})
	}
}

func TestResolveSourceErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := resolveSource(cfg, "", "", "", "nope"); err == nil {
		t.Error("expected error for unknown source")
	}
	if _, err := resolveSource(cfg, "https://h.example.com", "", "", ""); err == nil {
		t.Error("expected error for url without a tree")
	}
}

func TestResolveSourceDefaultsToWorkingDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	got, err := resolveSource(config.DefaultConfig(), "", "", "", "")
	if err != nil {
		t.Fatalf("resolveSource failed: %v", err)
	}
	if got.Path != wd {
		t.Errorf("expected %s, got %s", wd, got.Path)
	}
}

func TestAutocloseDelay(t *testing.T) {
	tests := map[string]time.Duration{
		"":    0,
		"abc": 0,
		"-5":  0,
		"0":   0,
		"250": 250 * time.Millisecond,
	}
	for in, want := range tests {
		if got := autocloseDelay(in); got != want {
			t.Errorf("autocloseDelay(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestLocalSessionResolveAndInvalidate(t *testing.T) {
	dir := writeFixture(t)
	sess, err := openSession(sourceRef{Name: "fixture", Path: dir}, config.DefaultConfig(), sessionOptions{})
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	defer sess.Close()

	if sess.store == nil {
		t.Fatal("expected in-memory cache")
	}
	if got, want := sess.resolve("/local/blob/lib/x.rb"), filepath.Join(sess.local.Root(), "lib", "x.rb"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	ctx := context.Background()
	if _, err := sess.contents.GetContent(ctx, "/local/tree/lib"); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.contents.GetContent(ctx, "/local/tree/docs"); err != nil {
		t.Fatal(err)
	}
	if n, _ := sess.store.Len(ctx); n != 2 {
		t.Fatalf("expected 2 cached responses, got %d", n)
	}

	sess.invalidate(ctx, []string{filepath.Join(sess.local.Root(), "lib")})
	if n, _ := sess.store.Len(ctx); n != 1 {
		t.Errorf("expected lib dropped from cache, got %d entries", n)
	}
}

func TestSessionNoCache(t *testing.T) {
	dir := writeFixture(t)
	sess, err := openSession(sourceRef{Path: dir}, config.DefaultConfig(), sessionOptions{NoCache: true})
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	defer sess.Close()
	if sess.store != nil {
		t.Error("expected no cache")
	}
	// Without a cache invalidation is a no-op.
	sess.invalidate(context.Background(), []string{dir})
}

func TestRemoteSessionResolve(t *testing.T) {
	sess, err := openSession(sourceRef{BaseURL: "https://git.example.com", Root: "/a/-/tree/main"}, config.DefaultConfig(), sessionOptions{NoCache: true})
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	defer sess.Close()

	if got := sess.resolve("/a/-/blob/main/x.rb"); got != "https://git.example.com/a/-/blob/main/x.rb" {
		t.Errorf("unexpected resolved url %s", got)
	}
	if got := sess.describe(); got != "https://git.example.com/a/-/tree/main" {
		t.Errorf("unexpected description %s", got)
	}
}

func TestRobotTreeOutput(t *testing.T) {
	dir := writeFixture(t)
	sess, err := openSession(sourceRef{Path: dir}, config.DefaultConfig(), sessionOptions{})
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	defer sess.Close()

	var buf bytes.Buffer
	if err := runRobotTree(context.Background(), &buf, sess, 9, true); err != nil {
		t.Fatalf("runRobotTree failed: %v", err)
	}

	var out struct {
		RootURL string `json:"root_url"`
		Stats   struct {
			Directories int `json:"directories"`
			Nodes       int `json:"nodes"`
		} `json:"stats"`
		Files []struct {
			Name  string `json:"name"`
			Level int    `json:"level"`
		} `json:"files"`
		Metrics *struct {
			Caches []any `json:"caches"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if out.RootURL != "/local/tree" {
		t.Errorf("expected root url /local/tree, got %s", out.RootURL)
	}
	var names []string
	for _, f := range out.Files {
		names = append(names, f.Name)
	}
	want := []string{"README.md", "docs", "guide.md", "lib", "x.rb", "sub", "y.rb"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if out.Files[6].Level != 2 {
		t.Errorf("expected y.rb at level 2, got %d", out.Files[6].Level)
	}
	if out.Stats.Directories != 4 {
		t.Errorf("expected 4 directories loaded, got %d", out.Stats.Directories)
	}
	if out.Metrics == nil || len(out.Metrics.Caches) == 0 {
		t.Error("expected metrics in output")
	}
}

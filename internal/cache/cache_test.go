package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	body  map[string]string
	err   error
}

func newCounting() *countingFetcher {
	return &countingFetcher{calls: map[string]int{}, body: map[string]string{}}
}

func (f *countingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.body[url]; ok {
		return []byte(b), nil
	}
	return []byte("body:" + url), nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openMemory(t *testing.T, next *countingFetcher, opts ...Option) *Store {
	t.Helper()
	s, err := Open("", next, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_NilUpstream(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Error("expected error for nil upstream")
	}
}

func TestFetch_HitAndMiss(t *testing.T) {
	up := newCounting()
	up.body["/t/tree/lib"] = `{"blobs":[]}`
	s := openMemory(t, up)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, err := s.Fetch(ctx, "/t/tree/lib")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(body) != `{"blobs":[]}` {
			t.Errorf("unexpected body %q", body)
		}
	}
	if up.calls["/t/tree/lib"] != 1 {
		t.Errorf("expected one upstream call, got %d", up.calls["/t/tree/lib"])
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Errorf("expected 1 cached entry, got %d", n)
	}
}

func TestFetch_TTLExpiry(t *testing.T) {
	up := newCounting()
	up.body["/a"] = "v1"
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := openMemory(t, up, WithTTL(time.Minute), WithClock(clock.now))
	ctx := context.Background()

	_, _ = s.Fetch(ctx, "/a")
	clock.advance(30 * time.Second)
	_, _ = s.Fetch(ctx, "/a")
	if up.calls["/a"] != 1 {
		t.Fatalf("expected fresh hit, got %d calls", up.calls["/a"])
	}

	up.body["/a"] = "v2"
	clock.advance(time.Minute)
	body, _ := s.Fetch(ctx, "/a")
	if string(body) != "v2" || up.calls["/a"] != 2 {
		t.Errorf("expected refetch after ttl, got %q with %d calls", body, up.calls["/a"])
	}
}

func TestFetch_ErrorsNotCached(t *testing.T) {
	up := newCounting()
	up.err = errors.New("down")
	s := openMemory(t, up)
	ctx := context.Background()

	if _, err := s.Fetch(ctx, "/a"); err == nil {
		t.Fatal("expected upstream error")
	}
	up.err = nil
	up.body["/a"] = "ok"
	body, err := s.Fetch(ctx, "/a")
	if err != nil || string(body) != "ok" {
		t.Errorf("expected recovery, got %q %v", body, err)
	}
	if up.calls["/a"] != 2 {
		t.Errorf("expected 2 upstream calls, got %d", up.calls["/a"])
	}
}

func TestInvalidate(t *testing.T) {
	up := newCounting()
	s := openMemory(t, up)
	ctx := context.Background()
	for _, u := range []string{"/p/tree/lib", "/p/tree/lib/x", "/p/blob/a", "/q/tree"} {
		_, _ = s.Fetch(ctx, u)
	}

	n, err := s.Invalidate(ctx, "/p/tree/lib")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries removed, got %d", n)
	}

	n, _ = s.Invalidate(ctx, "")
	if n != 2 {
		t.Errorf("expected remaining 2 entries removed, got %d", n)
	}
	if l, _ := s.Len(ctx); l != 0 {
		t.Errorf("expected empty cache, got %d", l)
	}
}

func TestPrune(t *testing.T) {
	up := newCounting()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := openMemory(t, up, WithTTL(time.Minute), WithClock(clock.now))
	ctx := context.Background()

	_, _ = s.Fetch(ctx, "/old")
	clock.advance(2 * time.Minute)
	_, _ = s.Fetch(ctx, "/new")

	n, err := s.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}
}

func TestOnDiskPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	up := newCounting()
	up.body["/a"] = "disk"
	ctx := context.Background()

	s, err := Open(path, up)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, _ = s.Fetch(ctx, "/a")
	s.Close()

	s2, err := Open(path, up)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	body, _ := s2.Fetch(ctx, "/a")
	if string(body) != "disk" || up.calls["/a"] != 1 {
		t.Errorf("expected on-disk hit, got %q with %d calls", body, up.calls["/a"])
	}
	if s2.String() != "sqlite("+path+")" {
		t.Errorf("unexpected String %q", s2.String())
	}
}

func TestNamespacesShareOneDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	upA := newCounting()
	upA.body["/g/p/-/tree/main"] = "server-a"
	a, err := Open(path, upA, WithNamespace("https://a.example.com"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()
	if body, _ := a.Fetch(ctx, "/g/p/-/tree/main"); string(body) != "server-a" {
		t.Fatalf("expected server-a, got %q", body)
	}

	upB := newCounting()
	upB.body["/g/p/-/tree/main"] = "server-b"
	b, err := Open(path, upB, WithNamespace("https://b.example.com"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	body, err := b.Fetch(ctx, "/g/p/-/tree/main")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "server-b" {
		t.Errorf("expected server-b, got %q", body)
	}
	if upB.calls["/g/p/-/tree/main"] != 1 {
		t.Errorf("expected 1 upstream call for server b, got %d", upB.calls["/g/p/-/tree/main"])
	}

	if n, _ := b.Invalidate(ctx, ""); n != 1 {
		t.Errorf("expected only server b's entry removed, got %d", n)
	}
	if l, _ := a.Len(ctx); l != 1 {
		t.Errorf("expected server a's entry kept, got %d", l)
	}
}

func TestNamespaceIsNotAPrefixMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	short, err := Open(path, newCounting(), WithNamespace("https://a"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer short.Close()
	long, err := Open(path, newCounting(), WithNamespace("https://a.example"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer long.Close()

	_, _ = long.Fetch(ctx, "/x")
	if n, _ := short.Invalidate(ctx, ""); n != 0 {
		t.Errorf("expected no entries of another namespace removed, got %d", n)
	}
	if l, _ := short.Len(ctx); l != 0 {
		t.Errorf("expected empty namespace, got %d", l)
	}
}

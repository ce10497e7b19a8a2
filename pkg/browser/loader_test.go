package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vanderheijden86/repoview/pkg/api"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// fakeFetcher serves canned documents keyed by URL.
type fakeFetcher struct {
	docs  map[string]string
	raw   map[string]string
	errs  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{docs: map[string]string{}, raw: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) GetContent(_ context.Context, url string) (model.Payload, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return model.Payload{}, err
	}
	doc, ok := f.docs[url]
	if !ok {
		return model.Payload{}, fmt.Errorf("GET %s: %w", url, api.ErrNotFound)
	}
	return api.DecodePayload([]byte(doc))
}

func (f *fakeFetcher) GetBase64Content(_ context.Context, rawURL string) (string, error) {
	f.calls = append(f.calls, rawURL)
	if err := f.errs[rawURL]; err != nil {
		return "", err
	}
	return f.raw[rawURL], nil
}

type recorder struct {
	messages []string
}

func (r *recorder) Notify(msg string) { r.messages = append(r.messages, msg) }

type harness struct {
	state   *State
	loader  *ContentLoader
	fetcher *fakeFetcher
	stack   *Stack
	notes   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state:   NewState(),
		fetcher: newFakeFetcher(),
		stack:   NewStack(),
		notes:   &recorder{},
	}
	l, err := NewContentLoader(Deps{
		State:    h.state,
		History:  NewHistorySync(h.stack),
		Fetcher:  h.fetcher,
		Notifier: h.notes,
	})
	if err != nil {
		t.Fatalf("NewContentLoader: %v", err)
	}
	h.loader = l
	return h
}

const rootDoc = `{"blobs":[{"name":"a.rb","url":"/t/blob/a.rb"}],"trees":[{"name":"lib","url":"/t/tree/lib"}],"submodules":[]}`

func TestNewContentLoader_Validation(t *testing.T) {
	if _, err := NewContentLoader(Deps{Fetcher: newFakeFetcher()}); err == nil {
		t.Error("expected error without state")
	}
	if _, err := NewContentLoader(Deps{State: NewState()}); err == nil {
		t.Error("expected error without fetcher")
	}
	if _, err := NewContentLoader(Deps{State: NewState(), Tree: NewTreeModel(NewState()), Fetcher: newFakeFetcher()}); err == nil {
		t.Error("expected error when components use a different state")
	}
}

func TestLoader_RootTree(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/tree"] = rootDoc

	out := h.loader.Request(context.Background(), model.Node{Type: model.NodeTree, URL: "/t/tree"})
	if out.State != Resolved || out.Kind != model.NodeTree {
		t.Fatalf("unexpected outcome %+v", out)
	}
	assertList(t, h.state, "a.rb(0)", "lib(0)")
	if !h.state.IsTree() {
		t.Error("expected IsTree after tree load")
	}
	if h.stack.Len() != 0 {
		t.Error("directory loads must not push history")
	}
	if h.state.Loading().Tree {
		t.Error("expected tree loading flag cleared")
	}
}

func TestLoader_ExpandAndCollapse(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/tree"] = rootDoc
	h.fetcher.docs["/t/tree/lib"] = `{"blobs":[{"name":"x.rb","url":"/t/tree/lib/blob/x.rb"}],"trees":[],"submodules":[]}`
	ctx := context.Background()

	h.loader.Request(ctx, model.Node{Type: model.NodeTree, URL: "/t/tree"})

	req := h.loader.ToggleDir("/t/tree/lib")
	if req == nil {
		t.Fatal("expected a fetch for a collapsed directory")
	}
	if lib, _ := h.state.File("/t/tree/lib"); !lib.Loading {
		t.Error("expected node to be flagged loading while in flight")
	}
	if !h.state.Loading().Tree {
		t.Error("expected tree loading flag while in flight")
	}
	h.loader.Complete(h.loader.Fetch(ctx, req))
	assertList(t, h.state, "a.rb(0)", "lib(0)", "x.rb(1)")

	lib, _ := h.state.File("/t/tree/lib")
	if !lib.Opened || lib.Icon != model.IconFolderOpen || lib.Loading {
		t.Errorf("unexpected lib node %+v", lib)
	}
	if h.state.PrevURL() != "/t/tree" {
		t.Errorf("expected prev url /t/tree, got %q", h.state.PrevURL())
	}

	if req := h.loader.ToggleDir("/t/tree/lib"); req != nil {
		t.Fatal("collapsing must not fetch")
	}
	assertList(t, h.state, "a.rb(0)", "lib(0)")
}

func TestLoader_BinaryBlob(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/a.rb"] = `{"binary":true,"mime_type":"image/png"}`
	h.fetcher.raw["/t/raw/a.rb"] = "iVBORw0KGgo="
	ctx := context.Background()

	req := h.loader.Begin(model.Node{Type: model.NodeBlob, Name: "a.rb", URL: "/t/blob/a.rb"})
	p := req.Placeholder()
	if p == nil {
		t.Fatal("expected a placeholder for a blob request")
	}
	tabs := h.state.Tabs()
	if len(tabs) != 1 || tabs[0].URL != p.URL || !tabs[0].Loading {
		t.Fatalf("expected placeholder tab appended, got %+v", tabs)
	}
	if !h.state.Loading().Blob {
		t.Error("expected blob loading flag")
	}

	out := h.loader.Complete(h.loader.Fetch(ctx, req))
	if out.State != Resolved || out.Kind != model.NodeBlob {
		t.Fatalf("unexpected outcome %+v", out)
	}

	tabs = h.state.Tabs()
	if len(tabs) != 1 {
		t.Fatalf("expected one tab, got %+v", tabs)
	}
	tab := tabs[0]
	if tab.URL != "/t/blob/a.rb" || !tab.Binary || !tab.Active || tab.Base64 != "iVBORw0KGgo=" {
		t.Errorf("unexpected tab %+v", tab)
	}
	if h.state.BlobRaw() != "iVBORw0KGgo=" || !h.state.Binary() {
		t.Error("expected binary content mirrored into the displayed slot")
	}
	if h.state.BinaryMimeType() != "image/png" {
		t.Errorf("expected mime type image/png, got %q", h.state.BinaryMimeType())
	}
	entries := h.stack.Entries()
	if len(entries) != 1 || entries[0].URL != "/t/blob/a.rb" {
		t.Errorf("expected one history push for the blob, got %+v", entries)
	}
	if h.state.Loading().Blob {
		t.Error("expected blob loading flag cleared")
	}
	if len(h.notes.messages) != 0 {
		t.Errorf("unexpected notifications %v", h.notes.messages)
	}
}

func TestLoader_TextBlob(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/p/blob/master/lib/x.rb"] = `{"binary":false,"plain":"puts 1","mime_type":"text/x-ruby"}`

	out := h.loader.Request(context.Background(), h.loader.NodeFor("/p/blob/master/lib/x.rb"))
	if out.State != Resolved {
		t.Fatalf("unexpected outcome %+v", out)
	}
	active, ok := h.state.ActiveFile()
	if !ok || active.Name != "x.rb" || active.Binary || active.Plain != "puts 1" {
		t.Errorf("unexpected active tab %+v", active)
	}
	if h.state.BlobRaw() != "puts 1" || h.state.Binary() {
		t.Error("expected plain content mirrored")
	}
	if h.state.PrevURL() != "/p/tree/master" {
		t.Errorf("expected prev url /p/tree/master, got %q", h.state.PrevURL())
	}
	for _, c := range h.fetcher.calls {
		if strings.Contains(c, "/raw/") {
			t.Error("text blobs must not fetch raw content")
		}
	}
	if h.stack.Len() != 1 {
		t.Errorf("expected a history push, got %d entries", h.stack.Len())
	}
}

func TestLoader_FetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/ok.rb"] = `{"plain":"ok"}`
	ctx := context.Background()
	h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/ok.rb"})
	before := fmt.Sprint(h.state.Tabs())

	h.fetcher.errs["/t/blob/broken.rb"] = errors.New("connection reset")
	out := h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/broken.rb"})

	if out.State != Failed || out.Err == nil {
		t.Fatalf("expected failure, got %+v", out)
	}
	if h.loader.Status("/t/blob/broken.rb") != Failed {
		t.Error("expected Failed status")
	}
	if len(h.notes.messages) != 1 || h.notes.messages[0] != FailureMessage {
		t.Errorf("expected exactly one failure notification, got %v", h.notes.messages)
	}
	if after := fmt.Sprint(h.state.Tabs()); after != before {
		t.Errorf("tabs changed on failure:\nbefore %s\nafter  %s", before, after)
	}
	if h.state.Loading().Blob {
		t.Error("expected loading flag cleared after failure")
	}
}

func TestLoader_Base64Failure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/img.png"] = `{"binary":true,"mime_type":"image/png"}`
	h.fetcher.errs["/t/raw/img.png"] = errors.New("timeout")

	out := h.loader.Request(context.Background(), model.Node{Type: model.NodeBlob, URL: "/t/blob/img.png"})
	if out.State != Failed {
		t.Fatalf("expected failure, got %+v", out)
	}
	if len(h.state.Tabs()) != 0 {
		t.Error("expected no tabs after failed binary load")
	}
	if len(h.notes.messages) != 1 {
		t.Errorf("expected one notification, got %v", h.notes.messages)
	}
}

func TestLoader_StaleResponseDiscarded(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/a.rb"] = `{"plain":"v1"}`
	ctx := context.Background()

	first := h.loader.Begin(model.Node{Type: model.NodeBlob, URL: "/t/blob/a.rb"})
	firstRes := h.loader.Fetch(ctx, first)

	h.fetcher.docs["/t/blob/a.rb"] = `{"plain":"v2"}`
	second := h.loader.Begin(model.Node{Type: model.NodeBlob, URL: "/t/blob/a.rb"})
	secondRes := h.loader.Fetch(ctx, second)

	if len(h.state.Tabs()) != 2 {
		t.Fatalf("expected two placeholders while both are in flight, got %d", len(h.state.Tabs()))
	}

	// The newer request lands first; the older one must not overwrite it.
	if out := h.loader.Complete(secondRes); out.State != Resolved {
		t.Fatalf("unexpected outcome %+v", out)
	}
	out := h.loader.Complete(firstRes)
	if !out.Stale() {
		t.Fatalf("expected stale outcome, got %+v", out)
	}

	tabs := h.state.Tabs()
	if len(tabs) != 1 || tabs[0].Plain != "v2" {
		t.Errorf("expected only the fresh tab with v2, got %+v", tabs)
	}
	if h.state.Loading().Blob {
		t.Error("expected blob loading flag cleared")
	}
	if h.stack.Len() != 1 {
		t.Errorf("stale completion must not push history, got %d entries", h.stack.Len())
	}
}

func TestLoader_StaleFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.fetcher.errs["/t/blob/a.rb"] = errors.New("boom")
	ctx := context.Background()

	first := h.loader.Begin(model.Node{Type: model.NodeBlob, URL: "/t/blob/a.rb"})
	_ = h.loader.Begin(model.Node{Type: model.NodeBlob, URL: "/t/blob/a.rb"})
	if out := h.loader.Complete(h.loader.Fetch(ctx, first)); !out.Stale() {
		t.Fatalf("expected stale outcome, got %+v", out)
	}
	if len(h.notes.messages) != 0 {
		t.Error("stale failures must not notify")
	}
}

func TestLoader_UnknownPayloadFallsBackToBlob(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/odd"] = `{"message":"redirected"}`

	out := h.loader.Request(context.Background(), model.Node{Type: model.NodeBlob, URL: "/t/blob/odd"})
	if out.State != Resolved || out.Kind != model.NodeBlob {
		t.Fatalf("unexpected outcome %+v", out)
	}
	active, _ := h.state.ActiveFile()
	if active.Plain != `{"message":"redirected"}` {
		t.Errorf("expected raw document shown as text, got %q", active.Plain)
	}
}

func TestLoader_NonObjectPayloadIsSilentBlob(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/list"] = `[]`

	out := h.loader.Request(context.Background(), model.Node{Type: model.NodeBlob, URL: "/t/blob/list"})
	if out.State != Resolved || out.Kind != model.NodeBlob {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(h.notes.messages) != 0 {
		t.Errorf("expected no notification, got %v", h.notes.messages)
	}
	if active, _ := h.state.ActiveFile(); active.Plain != "[]" {
		t.Errorf("expected the document shown as text, got %q", active.Plain)
	}
}

func TestLoader_BlobRequestResolvingToTree(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/dir"] = `{"blobs":[],"trees":[{"name":"x","url":"/t/tree/dir/x"}],"submodules":[]}`

	out := h.loader.Request(context.Background(), model.Node{Type: model.NodeBlob, URL: "/t/blob/dir"})
	if out.Kind != model.NodeTree {
		t.Fatalf("expected tree classification, got %+v", out)
	}
	if len(h.state.Tabs()) != 0 {
		t.Error("expected placeholder removed when a blob request yields a tree")
	}
	assertList(t, h.state, "x(0)")
}

func TestLoader_ReopenExistingTab(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/a.rb"] = `{"plain":"v1"}`
	h.fetcher.docs["/t/blob/b.rb"] = `{"plain":"b"}`
	ctx := context.Background()

	h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/a.rb"})
	h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/b.rb"})
	h.fetcher.docs["/t/blob/a.rb"] = `{"plain":"v2"}`
	h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/a.rb"})

	tabs := h.state.Tabs()
	if len(tabs) != 2 || tabs[0].URL != "/t/blob/a.rb" {
		t.Fatalf("expected tab order kept, got %+v", tabs)
	}
	if !tabs[0].Active || tabs[0].Plain != "v2" {
		t.Errorf("expected existing tab refreshed and active, got %+v", tabs[0])
	}
	if h.state.BlobRaw() != "v2" {
		t.Errorf("expected displayed content v2, got %q", h.state.BlobRaw())
	}
}

func TestLoader_SetActiveFileAndClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, u := range []string{"/t/blob/a", "/t/blob/b", "/t/blob/c"} {
		h.fetcher.docs[u] = fmt.Sprintf(`{"plain":%q}`, u)
		h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: u})
	}

	if !h.loader.SetActiveFile("/t/blob/a") {
		t.Fatal("expected tab to match")
	}
	if h.state.BlobRaw() != "/t/blob/a" {
		t.Errorf("expected content of a, got %q", h.state.BlobRaw())
	}
	if h.loader.SetActiveFile("/t/blob/none") {
		t.Error("expected no match")
	}
	if h.stack.Len() != 4 {
		t.Errorf("expected 4 history entries, got %d", h.stack.Len())
	}

	h.loader.CloseTab("/t/blob/a")
	active, _ := h.state.ActiveFile()
	if active.URL != "/t/blob/b" || h.state.BlobRaw() != "/t/blob/b" {
		t.Errorf("expected b activated after closing a, got %q", active.URL)
	}

	h.loader.CloseTab("/t/blob/b")
	h.loader.CloseTab("/t/blob/c")
	if _, ok := h.state.ActiveFile(); ok {
		t.Error("expected no active file after closing all tabs")
	}
	if h.state.BlobRaw() != "" {
		t.Error("expected displayed content cleared")
	}
}

func TestLoader_PlaceholderNeverPushesHistory(t *testing.T) {
	h := newHarness(t)
	req := h.loader.Begin(model.Node{Type: model.NodeBlob, URL: "/t/blob/a"})
	h.loader.SetActiveFile(req.Placeholder().URL)
	if h.stack.Len() != 0 {
		t.Error("activating a placeholder must not push history")
	}
}

func TestLoader_RestoreFromHistory(t *testing.T) {
	h := newHarness(t)
	h.fetcher.docs["/t/blob/a"] = `{"plain":"a"}`
	h.fetcher.docs["/t/blob/b"] = `{"plain":"b"}`
	ctx := context.Background()

	h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/a"})
	h.loader.Request(ctx, model.Node{Type: model.NodeBlob, URL: "/t/blob/b"})
	calls := len(h.fetcher.calls)

	entry, ok := h.stack.Back()
	if !ok {
		t.Fatal("expected a back entry")
	}
	if req := h.loader.Restore(entry); req != nil {
		t.Fatal("expected an open tab to be restored without fetching")
	}
	if len(h.fetcher.calls) != calls {
		t.Error("restore of an open tab must not fetch")
	}
	if active, _ := h.state.ActiveFile(); active.URL != "/t/blob/a" {
		t.Errorf("expected a active, got %q", active.URL)
	}
	if h.loader.History().Key() != entry.Key {
		t.Error("expected key restored from entry")
	}
	if h.stack.Len() != 2 {
		t.Errorf("restoring must not push, got %d entries", h.stack.Len())
	}

	// A closed tab is refetched, still without pushing.
	h.loader.CloseTab("/t/blob/b")
	entry, _ = h.stack.Forward()
	req := h.loader.Restore(entry)
	if req == nil || !req.FromHistory {
		t.Fatalf("expected a history request, got %+v", req)
	}
	h.loader.Complete(h.loader.Fetch(ctx, req))
	if active, _ := h.state.ActiveFile(); active.URL != "/t/blob/b" {
		t.Errorf("expected b active, got %q", active.URL)
	}
	if h.stack.Len() != 2 {
		t.Errorf("history-driven loads must not push, got %d entries", h.stack.Len())
	}
}

func TestLoader_KindFromURLWhenTypeMissing(t *testing.T) {
	h := newHarness(t)
	if req := h.loader.Begin(model.Node{URL: "/t/blob/a"}); req.Kind != model.NodeBlob || req.Placeholder() == nil {
		t.Errorf("expected blob request, got %+v", req)
	}
	if req := h.loader.Begin(model.Node{URL: "/t"}); req.Kind != model.NodeTree {
		t.Errorf("expected tree default, got %+v", req)
	}
	if req := h.loader.Begin(model.Node{Type: model.NodeSubmodule, URL: "/other/tree/master"}); req.Kind != model.NodeTree {
		t.Errorf("expected submodule to load as tree, got %+v", req)
	}
}

func TestLoadStateString(t *testing.T) {
	for s, want := range map[LoadState]string{Idle: "idle", Loading: "loading", Resolved: "resolved", Failed: "failed"} {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}

func TestLoader_ToggleDirSkipsSubmodules(t *testing.T) {
	h := newHarness(t)
	const sub = "https://other.example.com/lib/-/tree/abc123"
	h.fetcher.docs["/t/tree"] = `{"blobs":[],"trees":[],"submodules":[{"name":"vendor","url":"` + sub + `"}]}`
	h.loader.Request(context.Background(), model.Node{Type: model.NodeTree, URL: "/t/tree"})

	if req := h.loader.ToggleDir(sub); req != nil {
		t.Errorf("expected no request for a submodule, got %+v", req)
	}
	for _, c := range h.fetcher.calls {
		if c == sub {
			t.Errorf("expected the submodule never fetched, got calls %v", h.fetcher.calls)
		}
	}
}

package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanderheijden86/repoview/pkg/api"
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// FailureMessage is shown to the user when a request fails.
const FailureMessage = "Unable to load the file at this time."

// ErrStale marks a completion superseded by a newer request for the same URL.
var ErrStale = errors.New("stale response")

// Fetcher retrieves content documents. Implementations must be safe to
// call from any goroutine.
type Fetcher interface {
	GetContent(ctx context.Context, url string) (model.Payload, error)
	GetBase64Content(ctx context.Context, rawURL string) (string, error)
}

// Notifier displays a transient message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string) { f(message) }

// LoadState is the per-URL request state.
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Resolved
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Request is one in-flight load. It is created by Begin, carried through
// Fetch and consumed by Complete.
type Request struct {
	Node        model.Node
	Kind        model.NodeType // what the requester expects: tree or blob
	Gen         uint64         // generation for Node.URL; older generations are stale
	FromHistory bool           // set for back/forward navigation; never pushes history

	placeholder *model.Tab
}

// Placeholder returns the loading tab created for a blob request, if any.
func (r *Request) Placeholder() *model.Tab {
	return r.placeholder
}

// Result is the outcome of Fetch.
type Result struct {
	Request *Request
	Payload model.Payload
	Base64  string
	Err     error
}

// Outcome describes what Complete did.
type Outcome struct {
	URL   string
	State LoadState
	Kind  model.NodeType // classification of the payload; empty on failure
	Err   error
}

// Stale reports whether the completion was discarded.
func (o Outcome) Stale() bool {
	return errors.Is(o.Err, ErrStale)
}

// Deps wires a ContentLoader. State and Fetcher are required; missing
// components are created over State.
type Deps struct {
	State    *State
	Tree     *TreeModel
	Tabs     *TabRegistry
	History  *HistorySync
	Fetcher  Fetcher
	Notifier Notifier
}

// ContentLoader requests nodes and applies the results to the tree, the tabs
// and the history.
type ContentLoader struct {
	state    *State
	tree     *TreeModel
	tabs     *TabRegistry
	history  *HistorySync
	fetcher  Fetcher
	notifier Notifier

	gens   map[string]uint64
	status map[string]LoadState
}

// NewContentLoader creates a loader from d.
func NewContentLoader(d Deps) (*ContentLoader, error) {
	if d.State == nil {
		return nil, fmt.Errorf("content loader: state is nil")
	}
	if d.Fetcher == nil {
		return nil, fmt.Errorf("content loader: fetcher is nil")
	}
	if d.Tree == nil {
		d.Tree = NewTreeModel(d.State)
	}
	if d.Tabs == nil {
		d.Tabs = NewTabRegistry(d.State)
	}
	if d.History == nil {
		d.History = NewHistorySync(nil)
	}
	if d.Notifier == nil {
		d.Notifier = NotifierFunc(func(string) {})
	}
	if d.Tree.state != d.State || d.Tabs.state != d.State {
		return nil, fmt.Errorf("content loader: components do not share the state")
	}
	return &ContentLoader{
		state:    d.State,
		tree:     d.Tree,
		tabs:     d.Tabs,
		history:  d.History,
		fetcher:  d.Fetcher,
		notifier: d.Notifier,
		gens:     make(map[string]uint64),
		status:   make(map[string]LoadState),
	}, nil
}

// State returns the state the loader drives.
func (l *ContentLoader) State() *State { return l.state }

// Tree returns the tree model.
func (l *ContentLoader) Tree() *TreeModel { return l.tree }

// Tabs returns the tab registry.
func (l *ContentLoader) Tabs() *TabRegistry { return l.tabs }

// History returns the history sync.
func (l *ContentLoader) History() *HistorySync { return l.history }

// Status returns the load state of url.
func (l *ContentLoader) Status(url string) LoadState {
	return l.status[url]
}

// NodeFor returns the tree node for url, or a node synthesized from the URL
// when it is not in the tree.
func (l *ContentLoader) NodeFor(url string) model.Node {
	if n := l.tree.Find(url); n != nil {
		return *n
	}
	return model.Node{
		Type: api.KindFromURL(url),
		Name: api.NameFromURL(url),
		URL:  url,
	}
}

// Begin moves node to Loading and returns the request to fetch. Blob
// requests get a placeholder tab.
func (l *ContentLoader) Begin(node model.Node) *Request {
	return l.begin(node, false)
}

// BeginFromHistory is Begin for back/forward navigation: the completion
// never pushes a history entry.
func (l *ContentLoader) BeginFromHistory(node model.Node) *Request {
	return l.begin(node, true)
}

func (l *ContentLoader) begin(node model.Node, fromHistory bool) *Request {
	kind := node.Type
	if kind != model.NodeTree && kind != model.NodeBlob {
		kind = api.KindFromURL(node.URL)
		if kind == "" {
			kind = model.NodeTree
		}
	}

	l.gens[node.URL]++
	req := &Request{
		Node:        node,
		Kind:        kind,
		Gen:         l.gens[node.URL],
		FromHistory: fromHistory,
	}
	l.status[node.URL] = Loading
	if live := l.tree.Find(node.URL); live != nil {
		live.Loading = true
	}

	if kind == model.NodeBlob {
		l.state.blobInFlight++
		req.placeholder = l.tabs.ToggleLoadingPlaceholder(true, nil)
	} else {
		l.state.treeInFlight++
	}
	debug.Log("loader: begin %s %s gen=%d history=%v", kind, node.URL, req.Gen, fromHistory)
	return req
}

// Fetch performs the network work for req. It reads no state and may run on
// any goroutine. Binary blobs also fetch their raw content as base64.
func (l *ContentLoader) Fetch(ctx context.Context, req *Request) Result {
	res := Result{Request: req}
	res.Payload, res.Err = l.fetcher.GetContent(ctx, req.Node.URL)
	if res.Err != nil {
		return res
	}
	if res.Payload.Kind == model.PayloadBlob && res.Payload.Blob.Binary {
		res.Base64, res.Err = l.fetcher.GetBase64Content(ctx, api.RawURLFromBlobURL(req.Node.URL))
	}
	return res
}

// Complete applies a fetch result. Results of superseded requests are
// dropped after their placeholder is removed.
func (l *ContentLoader) Complete(res Result) Outcome {
	req := res.Request
	url := req.Node.URL
	l.finish(req)

	if req.Gen != l.gens[url] {
		l.tabs.ToggleLoadingPlaceholder(false, req.placeholder)
		debug.Log("loader: dropping stale %s gen=%d (latest %d)", url, req.Gen, l.gens[url])
		return Outcome{URL: url, State: l.status[url], Err: ErrStale}
	}
	if live := l.tree.Find(url); live != nil {
		live.Loading = false
	}

	if res.Err != nil {
		l.status[url] = Failed
		l.tabs.ToggleLoadingPlaceholder(false, req.placeholder)
		debug.Log("loader: %s failed: %v", url, res.Err)
		l.notifier.Notify(FailureMessage)
		return Outcome{URL: url, State: Failed, Err: res.Err}
	}

	kind := Classify(res.Payload)
	l.state.isTree = kind == model.NodeTree
	if kind == model.NodeTree {
		l.tabs.ToggleLoadingPlaceholder(false, req.placeholder)
		l.applyTree(req, res.Payload.Tree)
	} else {
		l.applyBlob(req, res)
	}
	l.status[url] = Resolved
	return Outcome{URL: url, State: Resolved, Kind: kind}
}

// Request loads node synchronously.
func (l *ContentLoader) Request(ctx context.Context, node model.Node) Outcome {
	return l.Complete(l.Fetch(ctx, l.Begin(node)))
}

// RequestFromHistory loads node synchronously without pushing history.
func (l *ContentLoader) RequestFromHistory(ctx context.Context, node model.Node) Outcome {
	return l.Complete(l.Fetch(ctx, l.BeginFromHistory(node)))
}

func (l *ContentLoader) finish(req *Request) {
	if req.Kind == model.NodeBlob {
		if l.state.blobInFlight > 0 {
			l.state.blobInFlight--
		}
	} else if l.state.treeInFlight > 0 {
		l.state.treeInFlight--
	}
}

func (l *ContentLoader) applyTree(req *Request, listing *model.TreeListing) {
	parent := l.tree.Find(req.Node.URL)
	l.tree.MarkOpen(parent)
	l.tree.Expand(parent, listing.Nodes())
	l.state.prevURL = api.BlobURLToParent(req.Node.URL)
}

func (l *ContentLoader) applyBlob(req *Request, res Result) {
	l.tabs.ToggleLoadingPlaceholder(false, req.placeholder)

	blob := res.Payload.Blob
	if blob == nil {
		debug.Log("loader: unrecognized document at %s, showing it as text", req.Node.URL)
		blob = &model.BlobContent{Plain: string(res.Payload.Raw), MimeType: "application/json"}
	}

	name := req.Node.Name
	if name == "" {
		name = blob.Name
	}
	if name == "" {
		name = api.NameFromURL(req.Node.URL)
	}
	tab := &model.Tab{
		URL:      req.Node.URL,
		Name:     name,
		Type:     model.NodeBlob,
		MimeType: blob.MimeType,
	}
	if blob.Binary {
		tab.Binary = true
		tab.Base64 = res.Base64
		l.state.binaryMimeType = blob.MimeType
	} else {
		tab.Plain = blob.Plain
		parent := api.BlobURLToParent(req.Node.URL)
		l.state.prevURL = api.BlobURLToParent(parent)
	}

	if existing := l.tabs.Find(tab.URL); existing != nil {
		existing.Name = tab.Name
		existing.Binary = tab.Binary
		existing.Plain = tab.Plain
		existing.Base64 = tab.Base64
		existing.MimeType = tab.MimeType
		tab = existing
	} else {
		l.tabs.Add(tab)
	}
	l.setActiveFile(tab, !req.FromHistory)
}

// SetActiveFile activates the open tab with url, mirrors its content into the
// displayed slot and pushes a history entry. It reports whether a tab
// matched.
func (l *ContentLoader) SetActiveFile(url string) bool {
	tab := l.tabs.Find(url)
	if tab == nil {
		return false
	}
	l.setActiveFile(tab, true)
	return true
}

func (l *ContentLoader) setActiveFile(tab *model.Tab, push bool) {
	active := l.tabs.SetActive(tab)
	if active == nil {
		return
	}
	l.state.blobRaw = active.Raw()
	l.state.binary = active.Binary
	if !active.Loading && push {
		l.history.PushLocation(active.URL)
	}
}

// CloseTab closes the tab with url and activates a neighbour when the
// closed tab was active.
func (l *ContentLoader) CloseTab(url string) {
	next := l.tabs.Close(url)
	if next != nil {
		l.setActiveFile(next, true)
		return
	}
	if l.state.activeFile == nil {
		l.state.blobRaw = ""
		l.state.binary = false
	}
}

// ToggleDir collapses an expanded directory or starts loading a collapsed
// one. It returns the request to fetch, or nil when no fetch is needed.
// Submodules are never fetched.
func (l *ContentLoader) ToggleDir(url string) *Request {
	node := l.tree.Find(url)
	if node != nil && node.Type == model.NodeSubmodule {
		return nil
	}
	if node != nil && node.Opened {
		l.tree.Collapse(node)
		return nil
	}
	return l.Begin(l.NodeFor(url))
}

// Restore handles a back/forward navigation to entry. An open tab is
// re-activated without fetching; otherwise a history request is returned.
func (l *ContentLoader) Restore(entry HistoryEntry) *Request {
	l.history.SetKey(entry.Key)
	if tab := l.tabs.Find(entry.URL); tab != nil {
		l.setActiveFile(tab, false)
		return nil
	}
	return l.BeginFromHistory(l.NodeFor(entry.URL))
}

// Package browser is the state engine of the repository browser.
//
// It coordinates four components over one explicitly owned State:
//
//   - TreeModel keeps the flattened, order-correct directory tree.
//   - TabRegistry keeps the open file tabs, one of which is active.
//   - HistorySync pushes navigation entries with monotonic keys.
//   - ContentLoader requests nodes, classifies the results and drives the
//     other three.
//
// All mutating methods must be called from a single goroutine (the UI
// loop). The only part that may run elsewhere is ContentLoader.Fetch, which
// touches no state.
package browser

import (
	"github.com/vanderheijden86/repoview/pkg/model"
)

// LoadingFlags reports whether tree or blob requests are in flight.
type LoadingFlags struct {
	Tree bool
	Blob bool
}

// State is the view state shared by the engine components. Outside this
// package it is read-only; accessors return copies.
type State struct {
	files       []*model.Node
	openedFiles []*model.Tab
	activeFile  *model.Tab

	blobRaw        string
	binary         bool
	binaryMimeType string
	isTree         bool
	prevURL        string

	treeInFlight int
	blobInFlight int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// Files returns a copy of the flattened tree.
func (s *State) Files() []model.Node {
	out := make([]model.Node, len(s.files))
	for i, n := range s.files {
		out[i] = *n
	}
	return out
}

// FileCount returns the number of rows in the flattened tree.
func (s *State) FileCount() int {
	return len(s.files)
}

// File returns a copy of the tree row with the given URL.
func (s *State) File(url string) (model.Node, bool) {
	for _, n := range s.files {
		if n.URL == url {
			return *n, true
		}
	}
	return model.Node{}, false
}

// Tabs returns a copy of the open tabs in open order.
func (s *State) Tabs() []model.Tab {
	out := make([]model.Tab, len(s.openedFiles))
	for i, t := range s.openedFiles {
		out[i] = *t
	}
	return out
}

// ActiveFile returns a copy of the active tab.
func (s *State) ActiveFile() (model.Tab, bool) {
	if s.activeFile == nil {
		return model.Tab{}, false
	}
	return *s.activeFile, true
}

// BlobRaw returns the content of the displayed blob: base64 for binary
// blobs, plain text otherwise.
func (s *State) BlobRaw() string {
	return s.blobRaw
}

// Binary reports whether the displayed blob is binary.
func (s *State) Binary() bool {
	return s.binary
}

// BinaryMimeType is the mime type of the last binary blob loaded.
func (s *State) BinaryMimeType() string {
	return s.binaryMimeType
}

// IsTree reports whether the last resolved payload was a tree.
func (s *State) IsTree() bool {
	return s.isTree
}

// PrevURL is the tree URL one level above the last loaded location.
func (s *State) PrevURL() string {
	return s.prevURL
}

// Loading returns the loading flags.
func (s *State) Loading() LoadingFlags {
	return LoadingFlags{Tree: s.treeInFlight > 0, Blob: s.blobInFlight > 0}
}

func (s *State) indexOfFile(url string) int {
	for i, n := range s.files {
		if n.URL == url {
			return i
		}
	}
	return -1
}

func (s *State) indexOfTab(url string) int {
	for i, t := range s.openedFiles {
		if t.URL == url {
			return i
		}
	}
	return -1
}

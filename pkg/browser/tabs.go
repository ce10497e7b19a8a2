package browser

import (
	"github.com/google/uuid"

	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// PlaceholderPrefix marks the URL of a loading placeholder tab.
const PlaceholderPrefix = "loading:"

// PlaceholderMimeType is the mime type reported by placeholder tabs.
const PlaceholderMimeType = "loading"

// TabRegistry keeps the ordered list of open tabs. URLs are unique and at
// most one tab is active.
type TabRegistry struct {
	state *State
	max   int
	newID func() string
}

// TabOption configures a TabRegistry.
type TabOption func(*TabRegistry)

// WithMaxTabs bounds the number of open tabs. Zero means unbounded.
// Placeholders do not count, and the active tab is never evicted: an add
// that finds no idle tab to drop overflows until the next SetActive, which
// trims back to the bound.
func WithMaxTabs(n int) TabOption {
	return func(r *TabRegistry) {
		if n > 0 {
			r.max = n
		}
	}
}

// WithPlaceholderIDs overrides how placeholder identities are generated.
func WithPlaceholderIDs(fn func() string) TabOption {
	return func(r *TabRegistry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewTabRegistry creates a tab registry over s.
func NewTabRegistry(s *State, opts ...TabOption) *TabRegistry {
	r := &TabRegistry{
		state: s,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Find returns the live tab with the given URL, or nil.
func (r *TabRegistry) Find(url string) *model.Tab {
	if i := r.state.indexOfTab(url); i >= 0 {
		return r.state.openedFiles[i]
	}
	return nil
}

// Len returns the number of open tabs.
func (r *TabRegistry) Len() int {
	return len(r.state.openedFiles)
}

// Add appends tab unless a tab with the same URL is already open. It
// reports whether the tab was added. When the registry is bounded the
// oldest idle tab is evicted to make room.
func (r *TabRegistry) Add(tab *model.Tab) bool {
	if tab == nil || r.state.indexOfTab(tab.URL) >= 0 {
		return false
	}
	if r.max > 0 && !tab.Loading {
		r.evictFor(1)
	}
	r.state.openedFiles = append(r.state.openedFiles, tab)
	return true
}

// evictFor drops the oldest non-active, non-loading tabs until n more real
// tabs fit.
func (r *TabRegistry) evictFor(n int) {
	for r.realCount()+n > r.max {
		victim := -1
		for i, t := range r.state.openedFiles {
			if !t.Active && !t.Loading {
				victim = i
				break
			}
		}
		if victim < 0 {
			return
		}
		debug.Log("tabs: evicting %s", r.state.openedFiles[victim].URL)
		r.state.openedFiles = append(r.state.openedFiles[:victim], r.state.openedFiles[victim+1:]...)
	}
}

func (r *TabRegistry) realCount() int {
	n := 0
	for _, t := range r.state.openedFiles {
		if !t.Loading {
			n++
		}
	}
	return n
}

// Remove closes the tab with tab's URL. Only blobs are closable; other node
// types are ignored.
func (r *TabRegistry) Remove(tab *model.Tab) {
	if tab == nil || tab.Type != model.NodeBlob {
		return
	}
	i := r.state.indexOfTab(tab.URL)
	if i < 0 {
		return
	}
	if r.state.activeFile != nil && r.state.activeFile.URL == tab.URL {
		r.state.activeFile = nil
	}
	r.state.openedFiles = append(r.state.openedFiles[:i], r.state.openedFiles[i+1:]...)
}

// SetActive makes the tab with tab's URL the only active tab and returns
// it. When no tab matches nothing changes and nil is returned.
func (r *TabRegistry) SetActive(tab *model.Tab) *model.Tab {
	if tab == nil {
		return nil
	}
	i := r.state.indexOfTab(tab.URL)
	if i < 0 {
		return nil
	}
	for j, t := range r.state.openedFiles {
		t.Active = j == i
	}
	active := r.state.openedFiles[i]
	r.state.activeFile = active
	if r.max > 0 {
		r.evictFor(0)
	}
	return active
}

// ToggleLoadingPlaceholder appends a fresh placeholder tab when loading is
// true and returns it. When loading is false it removes placeholder and
// returns nil.
func (r *TabRegistry) ToggleLoadingPlaceholder(loading bool, placeholder *model.Tab) *model.Tab {
	if !loading {
		r.Remove(placeholder)
		return nil
	}
	tab := &model.Tab{
		URL:      PlaceholderPrefix + r.newID(),
		Name:     "loading",
		Type:     model.NodeBlob,
		Binary:   true,
		Loading:  true,
		MimeType: PlaceholderMimeType,
	}
	r.state.openedFiles = append(r.state.openedFiles, tab)
	return tab
}

// Close closes the tab with the given URL. When it was active, its right
// neighbour (or the left one when it was last) is returned as the next tab
// to activate; the caller decides whether to activate it.
func (r *TabRegistry) Close(url string) *model.Tab {
	i := r.state.indexOfTab(url)
	if i < 0 {
		return nil
	}
	wasActive := r.state.openedFiles[i].Active
	r.Remove(r.state.openedFiles[i])
	if !wasActive || len(r.state.openedFiles) == 0 {
		return nil
	}
	if i >= len(r.state.openedFiles) {
		i = len(r.state.openedFiles) - 1
	}
	return r.state.openedFiles[i]
}

// Neighbour returns the tab offset positions away from the active one,
// wrapping around. Placeholders are skipped.
func (r *TabRegistry) Neighbour(offset int) *model.Tab {
	tabs := make([]*model.Tab, 0, len(r.state.openedFiles))
	cur := -1
	for _, t := range r.state.openedFiles {
		if t.Loading {
			continue
		}
		if t.Active {
			cur = len(tabs)
		}
		tabs = append(tabs, t)
	}
	if len(tabs) == 0 {
		return nil
	}
	if cur < 0 {
		return tabs[0]
	}
	n := len(tabs)
	return tabs[((cur+offset)%n+n)%n]
}

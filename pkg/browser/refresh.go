package browser

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// ErrRootUnavailable is returned by ApplyRefresh when the root listing could
// not be reloaded. The tree is left untouched.
var ErrRootUnavailable = errors.New("root listing unavailable")

// RefreshPlan lists the directories to reload after the source changed: the
// root, then every expanded directory in display order.
type RefreshPlan struct {
	Root     string
	Expanded []string
}

// URLs returns the root followed by the expanded directories.
func (p RefreshPlan) URLs() []string {
	return append([]string{p.Root}, p.Expanded...)
}

// Listings maps directory URLs to freshly loaded listings. A missing entry
// is a directory that failed to load or no longer exists.
type Listings map[string]*model.TreeListing

// Expanded returns the URLs of the expanded directories in display order.
// A parent always precedes its expanded descendants.
func (t *TreeModel) Expanded() []string {
	var urls []string
	for _, n := range t.state.files {
		if n.Opened && n.IsDir() {
			urls = append(urls, n.URL)
		}
	}
	return urls
}

// Refresh rebuilds the list from a new root listing and re-expands every
// directory in expanded that still exists and has a listing.
func (t *TreeModel) Refresh(root *model.TreeListing, expanded []string, listings Listings) []*model.Node {
	t.Seed(root.Nodes())
	for _, url := range expanded {
		node := t.Find(url)
		listing, ok := listings[url]
		if node == nil || !ok || listing == nil {
			continue
		}
		t.MarkOpen(node)
		t.Expand(node, listing.Nodes())
	}
	return t.state.files
}

// PlanRefresh snapshots what has to be reloaded to rebuild the tree rooted
// at root.
func (l *ContentLoader) PlanRefresh(root string) RefreshPlan {
	return RefreshPlan{Root: root, Expanded: l.tree.Expanded()}
}

// ApplyRefresh rebuilds the tree from listings loaded for plan. Requests
// still in flight for directories in the plan are superseded.
func (l *ContentLoader) ApplyRefresh(plan RefreshPlan, listings Listings) error {
	root, ok := listings[plan.Root]
	if !ok || root == nil {
		l.notifier.Notify(FailureMessage)
		return fmt.Errorf("refreshing %s: %w", plan.Root, ErrRootUnavailable)
	}
	for _, url := range plan.URLs() {
		if l.status[url] == Loading {
			l.gens[url]++
			delete(l.status, url)
		}
		if _, ok := listings[url]; ok {
			l.status[url] = Resolved
		}
	}
	l.tree.Refresh(root, plan.Expanded, listings)
	l.state.isTree = true
	debug.Log("loader: refreshed %s (%d expanded, %d nodes)", plan.Root, len(plan.Expanded), len(l.state.files))
	return nil
}

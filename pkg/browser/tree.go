package browser

import (
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/metrics"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// Classify returns NodeTree for tree payloads and NodeBlob for everything
// else, including unrecognized documents.
func Classify(p model.Payload) model.NodeType {
	if p.Kind == model.PayloadTree {
		return model.NodeTree
	}
	return model.NodeBlob
}

// TreeModel maintains the flattened view of however much of the directory
// tree has been expanded. A directory's descendants are contiguous and
// immediately follow it.
type TreeModel struct {
	state *State
}

// NewTreeModel creates a tree model over s.
func NewTreeModel(s *State) *TreeModel {
	return &TreeModel{state: s}
}

// Find returns the live node with the given URL, or nil.
func (t *TreeModel) Find(url string) *model.Node {
	if i := t.state.indexOfFile(url); i >= 0 {
		return t.state.files[i]
	}
	return nil
}

// Seed replaces the whole list with level-0 children. Used for the root
// load and for re-rendering after the source changed.
func (t *TreeModel) Seed(children []*model.Node) []*model.Node {
	for _, c := range children {
		c.Level = 0
	}
	t.state.files = children
	return t.state.files
}

// Expand splices children into the list right after parent, tagged one
// level deeper, and returns the new list. With a nil parent, or a parent
// that is not in the list, the children become the whole list.
// Expanding an already expanded parent replaces its previous children.
func (t *TreeModel) Expand(parent *model.Node, children []*model.Node) []*model.Node {
	defer metrics.Timer(metrics.Expand)()

	if parent == nil {
		return t.Seed(children)
	}
	idx := t.state.indexOfFile(parent.URL)
	if idx < 0 {
		debug.Log("tree: parent %s not in list, re-rooting with %d nodes", parent.URL, len(children))
		return t.Seed(children)
	}

	live := t.state.files[idx]
	end := t.subtreeEnd(idx)

	for _, c := range children {
		c.Level = live.Level + 1
	}

	files := make([]*model.Node, 0, len(t.state.files)-(end-idx-1)+len(children))
	files = append(files, t.state.files[:idx+1]...)
	files = append(files, children...)
	files = append(files, t.state.files[end:]...)
	t.state.files = files
	return files
}

// Collapse removes the contiguous run of descendants following node and
// marks it closed.
func (t *TreeModel) Collapse(node *model.Node) {
	defer metrics.Timer(metrics.Collapse)()

	if node == nil {
		return
	}
	if idx := t.state.indexOfFile(node.URL); idx >= 0 {
		end := t.subtreeEnd(idx)
		t.state.files = append(t.state.files[:idx+1], t.state.files[end:]...)
		node = t.state.files[idx]
	}
	node.Opened = false
	if node.Type == model.NodeTree {
		node.Icon = model.IconFolder
	}
}

// MarkOpen flags a directory as expanded. It is idempotent.
func (t *TreeModel) MarkOpen(node *model.Node) {
	if node == nil {
		return
	}
	node.Opened = true
	node.Icon = model.IconFolderOpen
}

// subtreeEnd returns the index one past the last descendant of files[idx].
func (t *TreeModel) subtreeEnd(idx int) int {
	level := t.state.files[idx].Level
	end := idx + 1
	for end < len(t.state.files) && t.state.files[end].Level > level {
		end++
	}
	return end
}

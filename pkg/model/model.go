// Package model defines the data shared by the repository browser engine,
// its fetch collaborators and the TUI.
package model

import (
	"fmt"
	"time"
)

// NodeType identifies what a tree entry points at.
type NodeType string

const (
	NodeTree      NodeType = "tree"
	NodeBlob      NodeType = "blob"
	NodeSubmodule NodeType = "submodule"
)

// IsValid reports whether t is one of the known node types.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTree, NodeBlob, NodeSubmodule:
		return true
	}
	return false
}

// Icon tokens. The UI maps them to glyphs.
const (
	IconFolder     = "folder"
	IconFolderOpen = "folder-open"
	IconFile       = "file-text-o"
	IconSubmodule  = "archive"
)

// Node is one row of the flattened directory tree.
type Node struct {
	Type              NodeType   `json:"type"`
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	Icon              string     `json:"icon,omitempty"`
	Level             int        `json:"level"` // depth relative to the tree root (0 = top)
	LastCommitMessage string     `json:"last_commit_message,omitempty"`
	LastCommitUpdate  *time.Time `json:"last_commit_update,omitempty"`
	Opened            bool       `json:"opened,omitempty"`
	Loading           bool       `json:"loading,omitempty"`
}

// IsDir reports whether the node can be expanded.
func (n *Node) IsDir() bool {
	return n != nil && n.Type == NodeTree
}

// Tab is an open file in the tab bar. URL is the identity.
type Tab struct {
	URL      string   `json:"url"`
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	Binary   bool     `json:"binary"`
	Active   bool     `json:"active"`
	Loading  bool     `json:"loading,omitempty"`
	Plain    string   `json:"plain,omitempty"`
	Base64   string   `json:"base64,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
}

// Raw returns the content that should be displayed for the tab:
// base64 for binary blobs, plain text otherwise.
func (t *Tab) Raw() string {
	if t.Binary {
		return t.Base64
	}
	return t.Plain
}

// NavigationKey correlates one history entry with in-memory state.
// Keys are issued from a monotonic sequence; zero means "no key".
type NavigationKey uint64

// String renders the key as a fixed-width decimal so that keys sort
// lexically in issue order.
func (k NavigationKey) String() string {
	return fmt.Sprintf("%016d", uint64(k))
}

// IsZero reports whether the key was never issued.
func (k NavigationKey) IsZero() bool {
	return k == 0
}

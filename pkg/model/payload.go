package model

import "time"

// PayloadKind discriminates the variants of Payload.
type PayloadKind int

const (
	// PayloadUnknown is a document matching neither the tree nor the blob shape.
	PayloadUnknown PayloadKind = iota
	PayloadTree
	PayloadBlob
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadTree:
		return "tree"
	case PayloadBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Payload is a decoded response from the content endpoint. Exactly one of
// Tree and Blob is set for the matching Kind; Raw keeps the undecoded
// document for PayloadUnknown.
type Payload struct {
	Kind PayloadKind
	Tree *TreeListing
	Blob *BlobContent
	Raw  []byte
}

// Commit is the last commit touching a tree entry.
type Commit struct {
	Message       string    `json:"message"`
	CommittedDate time.Time `json:"committed_date"`
}

// TreeEntry is one child of a directory listing.
type TreeEntry struct {
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	Icon       string  `json:"icon,omitempty"`
	LastCommit *Commit `json:"last_commit,omitempty"`
}

// TreeListing is the tree variant of Payload.
type TreeListing struct {
	Blobs      []TreeEntry `json:"blobs"`
	Trees      []TreeEntry `json:"trees"`
	Submodules []TreeEntry `json:"submodules"`
}

// Nodes flattens the listing into level-0 nodes: blobs first, then trees,
// then submodules, each group in server order.
func (l *TreeListing) Nodes() []*Node {
	if l == nil {
		return nil
	}
	nodes := make([]*Node, 0, len(l.Blobs)+len(l.Trees)+len(l.Submodules))
	for _, b := range l.Blobs {
		n := &Node{
			Type: NodeBlob,
			Name: b.Name,
			URL:  b.URL,
			Icon: iconOr(b.Icon, IconFile),
		}
		if b.LastCommit != nil {
			n.LastCommitMessage = b.LastCommit.Message
			if !b.LastCommit.CommittedDate.IsZero() {
				d := b.LastCommit.CommittedDate
				n.LastCommitUpdate = &d
			}
		}
		nodes = append(nodes, n)
	}
	for _, t := range l.Trees {
		nodes = append(nodes, &Node{
			Type: NodeTree,
			Name: t.Name,
			URL:  t.URL,
			Icon: iconOr(t.Icon, IconFolder),
		})
	}
	for _, s := range l.Submodules {
		nodes = append(nodes, &Node{
			Type: NodeSubmodule,
			Name: s.Name,
			URL:  s.URL,
			Icon: iconOr(s.Icon, IconSubmodule),
		})
	}
	return nodes
}

func iconOr(icon, fallback string) string {
	if icon == "" {
		return fallback
	}
	return icon
}

// BlobContent is the blob variant of Payload.
type BlobContent struct {
	Name     string `json:"name,omitempty"`
	Path     string `json:"path,omitempty"`
	Binary   bool   `json:"binary"`
	Plain    string `json:"plain,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

package api

import (
	"strings"

	"github.com/vanderheijden86/repoview/pkg/model"
)

// Path segments that select the view of a repository path.
const (
	SegmentTree = "tree"
	SegmentBlob = "blob"
	SegmentRaw  = "raw"
)

// BlobURLToParent returns the tree URL of the directory holding url: the
// last path segment is dropped and the first "blob" segment becomes "tree".
func BlobURLToParent(url string) string {
	segs := strings.Split(url, "/")
	if len(segs) > 0 {
		segs = segs[:len(segs)-1]
	}
	replaceFirstSegment(segs, SegmentBlob, SegmentTree)
	return strings.Join(segs, "/")
}

// RawURLFromBlobURL derives the raw-content URL for a blob URL by replacing
// the first "blob" path segment with "raw".
func RawURLFromBlobURL(url string) string {
	segs := strings.Split(url, "/")
	if !replaceFirstSegment(segs, SegmentBlob, SegmentRaw) {
		return url
	}
	return strings.Join(segs, "/")
}

// KindFromURL guesses what a URL addresses from its path segments. It
// returns NodeBlob for blob and raw URLs, NodeTree for tree URLs and ""
// when neither segment is present.
func KindFromURL(url string) model.NodeType {
	for _, seg := range strings.Split(stripQuery(url), "/") {
		switch seg {
		case SegmentTree:
			return model.NodeTree
		case SegmentBlob, SegmentRaw:
			return model.NodeBlob
		}
	}
	return ""
}

// NameFromURL returns the last non-empty path segment of url.
func NameFromURL(url string) string {
	segs := strings.Split(strings.TrimRight(stripQuery(url), "/"), "/")
	return segs[len(segs)-1]
}

// ChildURL returns the URL of rel below the directory treeURL. Blob
// children get the first "tree" segment replaced with "blob".
func ChildURL(treeURL, rel string, kind model.NodeType) string {
	rel = strings.Trim(rel, "/")
	u := strings.TrimRight(treeURL, "/")
	if rel != "" {
		u += "/" + rel
	}
	if kind != model.NodeBlob {
		return u
	}
	segs := strings.Split(u, "/")
	replaceFirstSegment(segs, SegmentTree, SegmentBlob)
	return strings.Join(segs, "/")
}

func replaceFirstSegment(segs []string, from, to string) bool {
	for i, s := range segs {
		if s == from {
			segs[i] = to
			return true
		}
	}
	return false
}

func stripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

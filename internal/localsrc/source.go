// Package localsrc serves a directory on disk through the same tree, blob
// and raw URL scheme as a repository server, so the browser can be pointed
// at a local checkout without any network.
//
// URLs look like:
//
//	<prefix>/tree/<path>   directory listing document
//	<prefix>/blob/<path>   blob document
//	<prefix>/raw/<path>    file bytes
package localsrc

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/wailsapp/mimetype"

	"github.com/vanderheijden86/repoview/pkg/api"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// DefaultPrefix is the URL prefix used when none is configured.
const DefaultPrefix = "/local"

// DefaultMaxPlain is the largest text file returned inline in a blob document.
const DefaultMaxPlain = 1 << 20

// Option configures a Source.
type Option func(*Source)

// WithPrefix sets the URL prefix.
func WithPrefix(prefix string) Option {
	return func(s *Source) {
		prefix = "/" + strings.Trim(prefix, "/")
		if prefix != "/" {
			s.prefix = prefix
		}
	}
}

// WithMaxPlain sets the inline text size limit.
func WithMaxPlain(n int64) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxPlain = n
		}
	}
}

// WithHidden controls whether dot files are listed. .git is never listed.
func WithHidden(show bool) Option {
	return func(s *Source) {
		s.showHidden = show
	}
}

// Source is a RawFetcher backed by a directory.
type Source struct {
	root       string
	prefix     string
	maxPlain   int64
	showHidden bool
}

// New creates a source rooted at dir.
func New(dir string, opts ...Option) (*Source, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	s := &Source{
		root:       abs,
		prefix:     DefaultPrefix,
		maxPlain:   DefaultMaxPlain,
		showHidden: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute directory served.
func (s *Source) Root() string {
	return s.root
}

// RootURL returns the tree URL of the root directory.
func (s *Source) RootURL() string {
	return s.prefix + "/" + api.SegmentTree
}

// URLFor returns the URL of rel (slash separated, relative to the root)
// for the given view segment.
func (s *Source) URLFor(segment, rel string) string {
	rel = strings.Trim(path.Clean("/"+rel), "/")
	if rel == "" {
		return s.prefix + "/" + segment
	}
	return s.prefix + "/" + segment + "/" + rel
}

// Prefixes returns the URL prefixes of every view of dir, an absolute path
// under the root. Responses under them are stale once dir changes on disk.
func (s *Source) Prefixes(dir string) ([]string, bool) {
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}
	return []string{
		s.URLFor(api.SegmentTree, rel),
		s.URLFor(api.SegmentBlob, rel),
		s.URLFor(api.SegmentRaw, rel),
	}, true
}

// PathFor returns the file on disk that url addresses.
func (s *Source) PathFor(url string) (string, error) {
	_, rel, err := s.parse(url)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Fetch implements api.RawFetcher.
func (s *Source) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	segment, rel, err := s.parse(url)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", url, api.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", url, err)
	}

	switch segment {
	case api.SegmentTree:
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory: %w", url, api.ErrNotFound)
		}
		return s.listing(rel, full)
	case api.SegmentBlob:
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory: %w", url, api.ErrNotFound)
		}
		return s.blob(rel, full, info.Size())
	default:
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory: %w", url, api.ErrNotFound)
		}
		return os.ReadFile(full)
	}
}

// parse splits url into its view segment and a clean root-relative path.
func (s *Source) parse(url string) (segment, rel string, err error) {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	rest, ok := strings.CutPrefix(url, s.prefix+"/")
	if !ok {
		return "", "", fmt.Errorf("%s is outside %s: %w", url, s.prefix, api.ErrNotFound)
	}
	segment, rel, _ = strings.Cut(rest, "/")
	switch segment {
	case api.SegmentTree, api.SegmentBlob, api.SegmentRaw:
	default:
		return "", "", fmt.Errorf("%s: unknown view %q: %w", url, segment, api.ErrNotFound)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", "", fmt.Errorf("%s escapes the root: %w", url, api.ErrNotFound)
		}
	}
	return segment, strings.Trim(path.Clean("/"+rel), "/"), nil
}

func (s *Source) listing(rel, full string) ([]byte, error) {
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", rel, err)
	}

	listing := model.TreeListing{
		Blobs:      []model.TreeEntry{},
		Trees:      []model.TreeEntry{},
		Submodules: []model.TreeEntry{},
	}
	for _, e := range entries {
		name := e.Name()
		if name == ".git" || (!s.showHidden && strings.HasPrefix(name, ".")) {
			continue
		}
		child := path.Join(rel, name)
		entry := model.TreeEntry{Name: name}
		if info, err := e.Info(); err == nil {
			entry.LastCommit = &model.Commit{CommittedDate: info.ModTime().UTC()}
		}

		switch {
		case e.IsDir() && isSubmodule(filepath.Join(full, name)):
			entry.URL = s.URLFor(api.SegmentTree, child)
			entry.Icon = model.IconSubmodule
			listing.Submodules = append(listing.Submodules, entry)
		case e.IsDir():
			entry.URL = s.URLFor(api.SegmentTree, child)
			entry.Icon = model.IconFolder
			listing.Trees = append(listing.Trees, entry)
		default:
			entry.URL = s.URLFor(api.SegmentBlob, child)
			entry.Icon = iconFor(name)
			listing.Blobs = append(listing.Blobs, entry)
		}
	}
	return json.Marshal(listing)
}

// isSubmodule reports whether dir is a git submodule checkout, which keeps
// a .git file rather than a directory.
func isSubmodule(dir string) bool {
	info, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil && !info.IsDir()
}

func (s *Source) blob(rel, full string, size int64) ([]byte, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", rel, err)
	}
	defer f.Close()

	head := make([]byte, 3072)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	doc := model.BlobContent{
		Name:     path.Base(rel),
		Path:     rel,
		Binary:   !isText(mtype),
		MimeType: mimeFor(rel, mtype),
		Size:     size,
	}
	if !doc.Binary {
		if size > s.maxPlain {
			doc.Plain = fmt.Sprintf("File too large to display (%d bytes).", size)
		} else {
			rest, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", rel, err)
			}
			doc.Plain = string(head) + string(rest)
		}
	}
	return json.Marshal(doc)
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func mimeFor(rel string, m *mimetype.MIME) string {
	if t, ok := textMimeByExt[strings.ToLower(path.Ext(rel))]; ok {
		return t
	}
	mt, _, _ := strings.Cut(m.String(), ";")
	return mt
}

var textMimeByExt = map[string]string{
	".go":   "text/x-go",
	".rb":   "text/x-ruby",
	".py":   "text/x-python",
	".js":   "application/javascript",
	".ts":   "application/typescript",
	".md":   "text/markdown",
	".yml":  "text/x-yaml",
	".yaml": "text/x-yaml",
	".json": "application/json",
	".sh":   "text/x-sh",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".rs":   "text/x-rust",
}

func iconFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp":
		return "file-image-o"
	case ".zip", ".gz", ".tgz", ".tar", ".xz", ".bz2":
		return "file-archive-o"
	case ".pdf":
		return "file-pdf-o"
	case ".go", ".rb", ".py", ".js", ".ts", ".c", ".h", ".rs", ".java", ".sh":
		return "file-code-o"
	default:
		return model.IconFile
	}
}

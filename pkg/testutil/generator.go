// Package testutil provides repository fixtures for tests: deterministic
// directory trees that can be written to disk and served by a local source.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// PNGHeader is enough of a PNG for content sniffing to call it an image.
var PNGHeader = string([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'})

// TreeFixture is a set of files keyed by slash-separated path relative to
// the repository root.
type TreeFixture struct {
	Description string            `json:"description"`
	Files       map[string]string `json:"files"`
	Properties  Properties        `json:"properties"`
}

// Properties summarises the shape of a fixture.
type Properties struct {
	Dirs     int `json:"dirs"`      // directories below the root
	Files    int `json:"files"`     // regular files
	MaxDepth int `json:"max_depth"` // deepest directory level, 0 = only root files
}

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed       int64    // Random seed for determinism (0 = use current time)
	Extensions []string // File extensions to pick from
	BinaryRate float64  // Share of generated files that are PNG images
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42, // Deterministic
		Extensions: []string{".go", ".md", ".rb", ".txt"},
	}
}

// Generator creates repository fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultConfig().Extensions
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Chain creates one directory per level, each holding a single file:
// d0/f0, d0/d1/f1, ...
func (g *Generator) Chain(depth int) TreeFixture {
	files := map[string]string{}
	dir := ""
	for i := 0; i < depth; i++ {
		dir = path.Join(dir, fmt.Sprintf("d%d", i))
		g.addFile(files, dir, fmt.Sprintf("f%d", i))
	}
	return newFixture(fmt.Sprintf("Chain of %d nested directories", depth), files)
}

// Flat creates n files in the root directory.
func (g *Generator) Flat(n int) TreeFixture {
	files := map[string]string{}
	for i := 0; i < n; i++ {
		g.addFile(files, "", fmt.Sprintf("f%d", i))
	}
	return newFixture(fmt.Sprintf("Flat directory of %d files", n), files)
}

// Tree creates a balanced tree: every directory down to depth has breadth
// subdirectories and one file.
func (g *Generator) Tree(depth, breadth int) TreeFixture {
	if breadth < 1 {
		breadth = 1
	}
	files := map[string]string{}
	level := []string{""}
	for d := 0; d <= depth; d++ {
		var next []string
		for i, dir := range level {
			g.addFile(files, dir, fmt.Sprintf("f%d_%d", d, i))
			if d == depth {
				continue
			}
			for b := 0; b < breadth; b++ {
				next = append(next, path.Join(dir, fmt.Sprintf("d%d", b)))
			}
		}
		level = next
	}
	return newFixture(fmt.Sprintf("Tree with depth=%d, breadth=%d", depth, breadth), files)
}

// Random scatters n files over up to dirs random directories.
func (g *Generator) Random(n, dirs int) TreeFixture {
	pool := []string{""}
	for i := 0; i < dirs; i++ {
		parent := pool[g.rng.Intn(len(pool))]
		pool = append(pool, path.Join(parent, fmt.Sprintf("r%d", i)))
	}
	files := map[string]string{}
	for i := 0; i < n; i++ {
		g.addFile(files, pool[g.rng.Intn(len(pool))], fmt.Sprintf("f%d", i))
	}
	return newFixture(fmt.Sprintf("%d random files", n), files)
}

func (g *Generator) addFile(files map[string]string, dir, base string) {
	if g.cfg.BinaryRate > 0 && g.rng.Float64() < g.cfg.BinaryRate {
		files[path.Join(dir, base+".png")] = PNGHeader
		return
	}
	ext := g.cfg.Extensions[g.rng.Intn(len(g.cfg.Extensions))]
	p := path.Join(dir, base+ext)
	files[p] = fmt.Sprintf("%s\nline %d\n", p, g.rng.Intn(1000))
}

func newFixture(desc string, files map[string]string) TreeFixture {
	return TreeFixture{Description: desc, Files: files, Properties: propertiesOf(files)}
}

func propertiesOf(files map[string]string) Properties {
	dirs := map[string]bool{}
	p := Properties{Files: len(files)}
	for f := range files {
		for d := path.Dir(f); d != "."; d = path.Dir(d) {
			dirs[d] = true
		}
	}
	p.Dirs = len(dirs)
	for d := range dirs {
		p.MaxDepth = max(p.MaxDepth, strings.Count(d, "/")+1)
	}
	return p
}

// Paths returns the fixture's file paths in sorted order.
func (f TreeFixture) Paths() []string {
	out := make([]string, 0, len(f.Files))
	for p := range f.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Write creates the fixture's files below dir.
func (f TreeFixture) Write(t testing.TB, dir string) {
	t.Helper()
	WriteTree(t, dir, f.Files)
}

// WriteTree creates files (slash-separated path -> content) below dir.
func WriteTree(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}
}

// TempTree writes files into a fresh temporary directory and returns it.
func TempTree(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteTree(t, dir, files)
	return dir
}

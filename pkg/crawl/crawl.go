// Package crawl expands a repository tree to a fixed depth, fetching each
// level concurrently while applying results in display order.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/repoview/pkg/browser"
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/metrics"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// DefaultConcurrency bounds in-flight fetches per level.
const DefaultConcurrency = 8

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets the maximum number of concurrent fetches.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLogger sets the logger for per-directory failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// Stats summarizes a crawl.
type Stats struct {
	Levels      int `json:"levels"`
	Directories int `json:"directories"`
	Failed      int `json:"failed"`
	Nodes       int `json:"nodes"`
}

// Crawler drives a ContentLoader breadth first. It must be used from the
// goroutine that owns the loader; only fetches run concurrently.
type Crawler struct {
	loader *browser.ContentLoader
	limit  int
	logger *log.Logger
}

// New creates a crawler over loader.
func New(loader *browser.ContentLoader, opts ...Option) *Crawler {
	c := &Crawler{
		loader: loader,
		limit:  DefaultConcurrency,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl loads root and expands directories until depth levels are shown.
// A depth below 1 loads the root only. Failures below the root are counted
// and skipped; a root failure aborts.
func (c *Crawler) Crawl(ctx context.Context, root string, depth int) (Stats, error) {
	defer metrics.Timer(metrics.Crawl)()
	defer debug.LogEnterExit("crawl " + root)()

	var stats Stats
	out := c.loader.Request(ctx, model.Node{Type: model.NodeTree, URL: root})
	if out.Err != nil {
		return stats, fmt.Errorf("loading %s: %w", root, out.Err)
	}
	if out.Kind != model.NodeTree {
		return stats, fmt.Errorf("%s is not a directory", root)
	}
	stats.Levels = 1
	stats.Directories = 1

	for level := 0; level+1 < depth; level++ {
		frontier := c.directoriesAt(level)
		if len(frontier) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		reqs := make([]*browser.Request, len(frontier))
		for i, node := range frontier {
			reqs[i] = c.loader.Begin(node)
		}
		results := c.fetchAll(ctx, reqs)

		for _, res := range results {
			out := c.loader.Complete(res)
			stats.Directories++
			if out.Err != nil {
				stats.Failed++
				c.logger.Printf("crawl: %s: %v", out.URL, out.Err)
			}
		}
		stats.Levels++
	}

	stats.Nodes = c.loader.State().FileCount()
	return stats, nil
}

// directoriesAt returns the collapsed directories at level, in display order.
func (c *Crawler) directoriesAt(level int) []model.Node {
	var dirs []model.Node
	for _, n := range c.loader.State().Files() {
		if n.Level == level && n.IsDir() && !n.Opened {
			dirs = append(dirs, n)
		}
	}
	return dirs
}

func (c *Crawler) fetchAll(ctx context.Context, reqs []*browser.Request) []browser.Result {
	results := make([]browser.Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = c.loader.Fetch(ctx, req)
			// Per-directory errors stay in the result.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Listings fetches every URL in plan concurrently and returns the tree
// listings that loaded. Non-tree documents and failures are left out.
func Listings(ctx context.Context, f browser.Fetcher, plan browser.RefreshPlan, limit int) browser.Listings {
	urls := plan.URLs()
	found := make([]*model.TreeListing, len(urls))
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, url := range urls {
		g.Go(func() error {
			p, err := f.GetContent(ctx, url)
			if err == nil && p.Kind == model.PayloadTree {
				found[i] = p.Tree
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(browser.Listings, len(urls))
	for i, url := range urls {
		if found[i] != nil {
			out[url] = found[i]
		}
	}
	return out
}

package main

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/repoview/pkg/browser"
	"github.com/vanderheijden86/repoview/pkg/crawl"
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/metrics"
	"github.com/vanderheijden86/repoview/pkg/model"
)

type robotTreeOutput struct {
	GeneratedAt string          `json:"generated_at"`
	Source      string          `json:"source"`
	RootURL     string          `json:"root_url"`
	Depth       int             `json:"depth"`
	Stats       crawl.Stats     `json:"stats"`
	Files       []model.Node    `json:"files"`
	Metrics     *metrics.Report `json:"metrics,omitempty"`
	UsageHints  []string        `json:"usage_hints,omitempty"`
}

func writeRobotOutput(w io.Writer, out any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runRobotTree crawls the tree depth levels deep and writes it as JSON.
func runRobotTree(ctx context.Context, w io.Writer, s *session, depth int, withMetrics bool) error {
	state := browser.NewState()
	loader, err := browser.NewContentLoader(browser.Deps{State: state, Fetcher: s.contents})
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := crawl.New(loader, crawl.WithLogger(debug.Logger())).Crawl(ctx, s.rootURL, depth)
	if err != nil {
		return err
	}
	debug.LogTiming("robot-tree", time.Since(start))

	out := robotTreeOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      s.describe(),
		RootURL:     s.rootURL,
		Depth:       depth,
		Stats:       stats,
		Files:       state.Files(),
		UsageHints: []string{
			"files are in display order; level is the depth below the root",
			"--robot-tree 0 lists only the root directory",
		},
	}
	if withMetrics {
		r := metrics.Snapshot()
		out.Metrics = &r
	}
	return writeRobotOutput(w, out)
}

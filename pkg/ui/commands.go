package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/repoview/pkg/browser"
	"github.com/vanderheijden86/repoview/pkg/crawl"
	"github.com/vanderheijden86/repoview/pkg/watcher"
)

// contentLoadedMsg carries a finished fetch back to the UI goroutine.
type contentLoadedMsg struct {
	res browser.Result
}

// refreshLoadedMsg carries the listings reloaded after a source change.
type refreshLoadedMsg struct {
	plan     browser.RefreshPlan
	listings browser.Listings
}

// SourceChangedMsg reports directories changed on disk.
type SourceChangedMsg struct {
	Dirs []string
}

// flashExpiredMsg clears the flash line unless a newer flash replaced it.
type flashExpiredMsg struct {
	seq int
}

type clipboardMsg struct {
	text string
	err  error
}

// fetchCmd runs the network half of req off the UI goroutine.
func fetchCmd(ctx context.Context, l *browser.ContentLoader, req *browser.Request) tea.Cmd {
	if req == nil {
		return nil
	}
	return func() tea.Msg {
		return contentLoadedMsg{res: l.Fetch(ctx, req)}
	}
}

func refreshCmd(ctx context.Context, f browser.Fetcher, plan browser.RefreshPlan) tea.Cmd {
	return func() tea.Msg {
		return refreshLoadedMsg{plan: plan, listings: crawl.Listings(ctx, f, plan, 0)}
	}
}

// WatchSourceCmd waits for the next debounced change and reports the
// directories involved.
func WatchSourceCmd(w *watcher.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		<-w.Changed()
		return SourceChangedMsg{Dirs: w.Drain()}
	}
}

func flashExpireCmd(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

func copyCmd(write func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{text: text, err: write(text)}
	}
}

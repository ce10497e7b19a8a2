// Package ui is the terminal front end: a tree pane, a tab bar and a content
// viewport driven by the browser state engine.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/repoview/pkg/browser"
	"github.com/vanderheijden86/repoview/pkg/config"
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/model"
	"github.com/vanderheijden86/repoview/pkg/watcher"
)

// DefaultFlashDuration is how long a flash message stays on the footer.
const DefaultFlashDuration = 4 * time.Second

const (
	defaultWidth  = 100
	defaultHeight = 30
	minTreeWidth  = 12
)

type focusPane int

const (
	focusTree focusPane = iota
	focusContent
)

// Options configures a Model.
type Options struct {
	Fetcher browser.Fetcher // required
	RootURL string          // required, tree URL shown at startup

	MaxTabs int
	Watcher *watcher.Watcher
	// OnSourceChange runs before the tree is reloaded for a change on disk,
	// typically to drop cached responses for dirs.
	OnSourceChange func(ctx context.Context, dirs []string)

	TreeWidth      int
	Markdown       bool
	MarkdownStyle  string // glamour standard style: "dark", "light", "notty"
	HighlightStyle string // chroma style name

	Renderer      *lipgloss.Renderer
	Clipboard     func(string) error
	ResolveURL    func(string) string // absolute form for copying
	FlashDuration time.Duration
	Context       context.Context
}

// OptionsFromConfig maps the user configuration onto Options. Fetcher and
// RootURL are left to the caller.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		MaxTabs:        cfg.Tabs.Max,
		TreeWidth:      cfg.UI.TreeWidth,
		Markdown:       cfg.MarkdownEnabled(),
		HighlightStyle: cfg.UI.HighlightStyle,
	}
}

// noticeBox collects loader notifications raised while a message is being
// handled. It is shared by every copy of the Model.
type noticeBox struct {
	pending []string
}

func (b *noticeBox) Notify(msg string) { b.pending = append(b.pending, msg) }

func (b *noticeBox) drain() []string {
	out := b.pending
	b.pending = nil
	return out
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx      context.Context
	loader   *browser.ContentLoader
	stack    *browser.Stack
	fetcher  browser.Fetcher
	root     string
	notices  *noticeBox
	watcher  *watcher.Watcher
	onChange func(context.Context, []string)

	theme    Theme
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	content  *contentRenderer

	clipboard func(string) error
	resolve   func(string) string

	width, height int
	treeWidth     int
	ready         bool
	focus         focusPane
	cursorURL     string
	treeOffset    int
	renderedKey   string

	flash         string
	flashIsError  bool
	flashSeq      int
	flashDuration time.Duration

	gotoForm  *huh.Form
	gotoInput *string
}

// NewModel builds the state engine over opts.Fetcher and the model around it.
func NewModel(opts Options) (Model, error) {
	if opts.Fetcher == nil {
		return Model{}, fmt.Errorf("ui: fetcher is required")
	}
	if opts.RootURL == "" {
		return Model{}, fmt.Errorf("ui: root url is required")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.DefaultRenderer()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.ResolveURL == nil {
		opts.ResolveURL = func(u string) string { return u }
	}
	if opts.FlashDuration <= 0 {
		opts.FlashDuration = DefaultFlashDuration
	}
	if opts.TreeWidth < minTreeWidth {
		opts.TreeWidth = config.DefaultConfig().UI.TreeWidth
	}

	notices := &noticeBox{}
	stack := browser.NewStack()
	state := browser.NewState()
	loader, err := browser.NewContentLoader(browser.Deps{
		State:    state,
		Tabs:     browser.NewTabRegistry(state, browser.WithMaxTabs(opts.MaxTabs)),
		History:  browser.NewHistorySync(stack),
		Fetcher:  opts.Fetcher,
		Notifier: notices,
	})
	if err != nil {
		return Model{}, err
	}

	theme := DefaultTheme(opts.Renderer)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(theme.Spinner))
	vp := viewport.New(max(1, defaultWidth-opts.TreeWidth-4), defaultHeight-7)

	return Model{
		ctx:           opts.Context,
		loader:        loader,
		stack:         stack,
		fetcher:       opts.Fetcher,
		root:          opts.RootURL,
		notices:       notices,
		watcher:       opts.Watcher,
		onChange:      opts.OnSourceChange,
		theme:         theme,
		keys:          defaultKeyMap(),
		help:          help.New(),
		spinner:       sp,
		viewport:      vp,
		content:       newContentRenderer(theme, opts.Markdown, opts.MarkdownStyle, opts.HighlightStyle),
		clipboard:     opts.Clipboard,
		resolve:       opts.ResolveURL,
		width:         defaultWidth,
		height:        defaultHeight,
		treeWidth:     opts.TreeWidth,
		flashDuration: opts.FlashDuration,
	}, nil
}

// Loader exposes the state engine, mainly for tests and robot output.
func (m Model) Loader() *browser.ContentLoader {
	return m.loader
}

// Init starts the root load, the spinner and the source watcher.
func (m Model) Init() tea.Cmd {
	req := m.loader.Begin(model.Node{Type: model.NodeTree, Name: "/", URL: m.root})
	return tea.Batch(
		m.spinner.Tick,
		fetchCmd(m.ctx, m.loader, req),
		WatchSourceCmd(m.watcher),
	)
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The go-to form receives every message that is not ours while it is
	// open; huh drives its fields with internal messages.
	if m.gotoForm != nil && !isOwnMsg(msg) {
		if k, ok := msg.(tea.KeyMsg); ok && (k.String() == "esc" || k.String() == "ctrl+c") {
			m.gotoForm, m.gotoInput = nil, nil
			return m, nil
		}
		return m.updateGoto(msg)
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		m.syncContent()

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case contentLoadedMsg:
		out := m.loader.Complete(msg.res)
		debug.LogIf(!out.Stale(), "ui: %s -> %s", out.URL, out.State)
		m.syncContent()

	case refreshLoadedMsg:
		if err := m.loader.ApplyRefresh(msg.plan, msg.listings); err != nil {
			debug.Log("ui: %v", err)
		}
		m.syncContent()
		cmds = append(cmds, m.reloadActiveText())

	case SourceChangedMsg:
		if m.onChange != nil {
			m.onChange(m.ctx, msg.Dirs)
		}
		cmds = append(cmds, m.startRefresh(), WatchSourceCmd(m.watcher))

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash, m.flashIsError = "", false
		}

	case clipboardMsg:
		if msg.err != nil {
			cmds = append(cmds, m.setFlash(fmt.Sprintf("Clipboard error: %v", msg.err), true))
		} else {
			cmds = append(cmds, m.setFlash("Copied "+msg.text, false))
		}
	}

	for _, n := range m.notices.drain() {
		cmds = append(cmds, m.setFlash(n, true))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return nil
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusTree {
			m.focus = focusContent
		} else {
			m.focus = focusTree
		}
		return nil
	case key.Matches(msg, m.keys.NextTab):
		return m.cycleTab(1)
	case key.Matches(msg, m.keys.PrevTab):
		return m.cycleTab(-1)
	case key.Matches(msg, m.keys.CloseTab):
		if tab, ok := m.loader.State().ActiveFile(); ok {
			m.loader.CloseTab(tab.URL)
			m.syncContent()
		}
		return nil
	case key.Matches(msg, m.keys.Back):
		if e, ok := m.stack.Back(); ok {
			return m.restore(e)
		}
		return nil
	case key.Matches(msg, m.keys.Forward):
		if e, ok := m.stack.Forward(); ok {
			return m.restore(e)
		}
		return nil
	case key.Matches(msg, m.keys.GoTo):
		return m.openGoto()
	case key.Matches(msg, m.keys.Copy):
		if tab, ok := m.loader.State().ActiveFile(); ok && !tab.Loading {
			return copyCmd(m.clipboard, m.resolve(tab.URL))
		}
		return m.setFlash("No open file to copy", true)
	case key.Matches(msg, m.keys.Refresh):
		return m.startRefresh()
	case key.Matches(msg, m.keys.Up1Level):
		return m.goUp()
	}

	if m.focus == focusContent {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Open):
		return m.openSelected()
	}
	return nil
}

// selectedIndex returns the cursor position in the current list.
func (m *Model) selectedIndex() int {
	files := m.loader.State().Files()
	if len(files) == 0 {
		return -1
	}
	for i, n := range files {
		if n.URL == m.cursorURL {
			return i
		}
	}
	return 0
}

func (m *Model) moveCursor(delta int) {
	files := m.loader.State().Files()
	if len(files) == 0 {
		return
	}
	i := m.selectedIndex() + delta
	i = max(0, min(i, len(files)-1))
	m.cursorURL = files[i].URL
	m.scrollTree(i)
}

func (m *Model) scrollTree(i int) {
	h := m.treeRows()
	if i < m.treeOffset {
		m.treeOffset = i
	} else if i >= m.treeOffset+h {
		m.treeOffset = i - h + 1
	}
	if m.treeOffset < 0 {
		m.treeOffset = 0
	}
}

func (m *Model) openSelected() tea.Cmd {
	i := m.selectedIndex()
	if i < 0 {
		return nil
	}
	node := m.loader.State().Files()[i]
	m.cursorURL = node.URL
	if node.Type == model.NodeSubmodule {
		// Submodules live in another repository, often on another host.
		return copyCmd(m.clipboard, m.resolve(node.URL))
	}
	if node.Type == model.NodeBlob {
		if m.loader.SetActiveFile(node.URL) {
			m.syncContent()
			return nil
		}
		return m.load(m.loader.Begin(node))
	}
	return m.load(m.loader.ToggleDir(node.URL))
}

func (m *Model) load(req *browser.Request) tea.Cmd {
	m.syncContent()
	return fetchCmd(m.ctx, m.loader, req)
}

func (m *Model) cycleTab(offset int) tea.Cmd {
	tab := m.loader.Tabs().Neighbour(offset)
	if tab == nil {
		return nil
	}
	m.loader.SetActiveFile(tab.URL)
	m.syncContent()
	return nil
}

func (m *Model) restore(e browser.HistoryEntry) tea.Cmd {
	return m.load(m.loader.Restore(e))
}

// goUp moves the cursor to the parent directory recorded by the last load,
// loading it when it is not in the tree.
func (m *Model) goUp() tea.Cmd {
	prev := m.loader.State().PrevURL()
	if prev == "" || !strings.HasPrefix(prev, m.root) {
		return m.setFlash("Already at the top", false)
	}
	if _, ok := m.loader.State().File(prev); ok {
		m.cursorURL = prev
		m.scrollTree(m.selectedIndex())
		m.focus = focusTree
		return nil
	}
	return m.load(m.loader.Begin(m.loader.NodeFor(prev)))
}

func (m *Model) startRefresh() tea.Cmd {
	return refreshCmd(m.ctx, m.fetcher, m.loader.PlanRefresh(m.root))
}

// reloadActiveText refetches the active text tab after the source changed.
func (m *Model) reloadActiveText() tea.Cmd {
	tab, ok := m.loader.State().ActiveFile()
	if !ok || tab.Binary || tab.Loading {
		return nil
	}
	return m.load(m.loader.BeginFromHistory(m.loader.NodeFor(tab.URL)))
}

func (m *Model) setFlash(text string, isErr bool) tea.Cmd {
	m.flashSeq++
	m.flash, m.flashIsError = text, isErr
	return flashExpireCmd(m.flashSeq, m.flashDuration)
}

// syncContent re-renders the viewport when the active tab or the pane size
// changed.
func (m *Model) syncContent() {
	tab, ok := m.loader.State().ActiveFile()
	if !ok {
		if m.renderedKey != "" {
			m.viewport.SetContent(m.theme.Muted.Render("Select a file to view it."))
			m.renderedKey = ""
		}
		return
	}
	k := fmt.Sprintf("%s|%d|%t|%d|%d", tab.URL, len(tab.Raw()), tab.Loading, m.viewport.Width, len(tab.Base64))
	if k == m.renderedKey {
		return
	}
	sameURL := strings.HasPrefix(m.renderedKey, tab.URL+"|")
	m.viewport.SetContent(m.content.Render(tab, m.viewport.Width))
	if !sameURL {
		m.viewport.GotoTop()
	}
	m.renderedKey = k
}

// resize recomputes pane sizes from the window size.
func (m *Model) resize() {
	m.help.Width = m.width
	m.viewport.Width = max(1, m.width-m.treePaneWidth()-4)
	m.viewport.Height = max(1, m.bodyHeight()-3)
	m.renderedKey = ""
}

// bodyHeight is the height of the pane row, borders included.
func (m Model) bodyHeight() int {
	footer := 1
	if m.help.ShowAll {
		footer = 5
	}
	return max(3, m.height-1-2-footer)
}

// treePaneWidth is the inner width of the tree pane.
func (m Model) treePaneWidth() int {
	return min(m.treeWidth, max(minTreeWidth, m.width/2))
}

// treeRows is the number of visible rows in the tree pane.
func (m Model) treeRows() int {
	return max(1, m.bodyHeight()-2)
}

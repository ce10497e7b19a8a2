package ui

import (
	"path"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/repoview/pkg/api"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// isOwnMsg reports whether msg is handled by the model even while the go-to
// form is open.
func isOwnMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case contentLoadedMsg, refreshLoadedMsg, SourceChangedMsg, flashExpiredMsg,
		clipboardMsg, spinner.TickMsg, tea.WindowSizeMsg:
		return true
	}
	return false
}

func (m *Model) openGoto() tea.Cmd {
	input := new(string)
	m.gotoInput = input
	m.gotoForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Go to").
				Description("Path relative to the root, or a full URL").
				Placeholder("lib/foo.rb").
				Value(input),
		),
	).WithTheme(huh.ThemeDracula()).
		WithShowHelp(false).
		WithWidth(max(20, m.width-4))
	return m.gotoForm.Init()
}

func (m Model) updateGoto(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.gotoForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.gotoForm = f
	}

	switch m.gotoForm.State {
	case huh.StateAborted:
		m.gotoForm, m.gotoInput = nil, nil
		return m, nil
	case huh.StateCompleted:
		input := strings.TrimSpace(*m.gotoInput)
		m.gotoForm, m.gotoInput = nil, nil
		if input == "" {
			return m, nil
		}
		target := gotoURL(m.root, input)
		node := m.loader.NodeFor(target)
		if node.Type == model.NodeBlob && m.loader.SetActiveFile(target) {
			m.syncContent()
			return m, nil
		}
		return m, m.load(m.loader.Begin(node))
	}
	return m, cmd
}

// gotoURL turns user input into a URL. Absolute paths and full URLs are
// used as typed; anything else is resolved below root, as a blob when it has
// an extension.
func gotoURL(root, input string) string {
	if strings.HasPrefix(input, "/") || strings.Contains(input, "://") {
		return input
	}
	kind := model.NodeTree
	if path.Ext(strings.TrimRight(input, "/")) != "" && !strings.HasSuffix(input, "/") {
		kind = model.NodeBlob
	}
	return api.ChildURL(root, input, kind)
}

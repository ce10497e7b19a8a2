package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/repoview/pkg/model"
)

// View renders the screen.
func (m Model) View() string {
	if m.gotoForm != nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			m.gotoForm.View(),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderTree(), m.renderContent())
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTabBar(),
		body,
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("rv") + " " + m.theme.Muted.Render(m.root)
	if l := m.loader.State().Loading(); l.Tree || l.Blob {
		title += " " + m.spinner.View()
	}
	return m.theme.Renderer.NewStyle().MaxWidth(m.width).Render(title)
}

func (m Model) renderTabBar() string {
	tabs := m.loader.State().Tabs()
	if len(tabs) == 0 {
		return m.theme.TabBar.Width(m.width).Render(m.theme.Muted.Render("no open files"))
	}
	parts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		label := truncate(tab.Name, 24)
		if tab.Loading {
			label = m.spinner.View() + " " + label
		}
		if tab.Active {
			parts = append(parts, m.theme.ActiveTab.Render(label))
		} else {
			parts = append(parts, m.theme.Tab.Render(label))
		}
	}
	return m.theme.TabBar.Width(m.width).MaxWidth(m.width).Render(strings.Join(parts, ""))
}

func (m Model) renderTree() string {
	w := m.treePaneWidth()
	rows := m.treeRows()
	files := m.loader.State().Files()
	sel := m.selectedIndex()

	lines := make([]string, 0, rows)
	for i := m.treeOffset; i < len(files) && len(lines) < rows; i++ {
		lines = append(lines, m.renderNode(files[i], i == sel, w))
	}
	if len(files) == 0 {
		lines = append(lines, m.theme.Muted.Render(truncate("(empty)", w)))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}

	style := m.theme.TreePane
	if m.focus == focusTree {
		style = style.BorderForeground(ColorPrimary)
	}
	return style.Width(w).Height(rows).Render(strings.Join(lines, "\n"))
}

func (m Model) renderNode(n model.Node, selected bool, width int) string {
	marker := "  "
	style := m.theme.File
	switch n.Type {
	case model.NodeTree:
		marker = "▸ "
		if n.Opened {
			marker = "▾ "
		}
		style = m.theme.Dir
	case model.NodeSubmodule:
		marker = "◆ "
		style = m.theme.Submodule
	}
	if n.Loading {
		marker = "… "
	}
	text := padRight(truncate(strings.Repeat("  ", n.Level)+marker+n.Name, width), width)
	if selected {
		return m.theme.Selected.Render(text)
	}
	return style.Render(text)
}

func (m Model) renderContent() string {
	title := m.theme.Muted.Render("No file selected")
	if tab, ok := m.loader.State().ActiveFile(); ok {
		title = m.theme.ContentTitle.Render(truncate(tab.Name, m.viewport.Width))
		if tab.MimeType != "" {
			title += " " + m.theme.Muted.Render(tab.MimeType)
		}
		if n, ok := m.loader.State().File(tab.URL); ok && n.LastCommitUpdate != nil {
			title += " " + m.theme.Muted.Render("· "+commitAge(*n.LastCommitUpdate, time.Now()))
		}
	}

	style := m.theme.ContentPane
	if m.focus == focusContent {
		style = m.theme.FocusedPane
	}
	title = m.theme.Renderer.NewStyle().MaxWidth(m.viewport.Width).Render(title)
	inner := lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View())
	return style.Width(m.viewport.Width).Height(m.viewport.Height + 1).Render(inner)
}

func (m Model) renderFooter() string {
	if m.flash != "" {
		if m.flashIsError {
			return m.theme.FlashError.Render(truncate(m.flash, m.width))
		}
		return m.theme.FlashInfo.Render(truncate(m.flash, m.width))
	}
	return m.help.View(m.keys)
}

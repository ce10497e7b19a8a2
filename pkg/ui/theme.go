package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Palette, Dracula on dark terminals with WCAG AA light equivalents.
var (
	ColorText      = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo      = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorBorder    = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"}
	ColorHighlight = lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"}
)

// Theme holds the pre-computed styles of every pane.
type Theme struct {
	Renderer *lipgloss.Renderer

	Base     lipgloss.Style
	Muted    lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style

	// Tree pane
	Dir       lipgloss.Style
	File      lipgloss.Style
	Submodule lipgloss.Style
	TreePane  lipgloss.Style

	// Tab bar
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	TabBar    lipgloss.Style

	// Content pane
	ContentPane  lipgloss.Style
	FocusedPane  lipgloss.Style
	BinaryLabel  lipgloss.Style
	ContentTitle lipgloss.Style

	// Footer
	FlashInfo  lipgloss.Style
	FlashError lipgloss.Style
	Spinner    lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{Renderer: r}

	t.Base = r.NewStyle().Foreground(ColorText)
	t.Muted = r.NewStyle().Foreground(ColorMuted)
	t.Header = r.NewStyle().Bold(true).Foreground(ColorPrimary)
	t.Selected = r.NewStyle().Background(ColorHighlight).Bold(true)

	t.Dir = r.NewStyle().Foreground(ColorInfo).Bold(true)
	t.File = r.NewStyle().Foreground(ColorText)
	t.Submodule = r.NewStyle().Foreground(ColorWarning)
	t.TreePane = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	t.Tab = r.NewStyle().Foreground(ColorMuted).Padding(0, 1)
	t.ActiveTab = r.NewStyle().Foreground(ColorPrimary).Bold(true).Underline(true).Padding(0, 1)
	t.TabBar = r.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorBorder)

	t.ContentPane = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)
	t.FocusedPane = t.ContentPane.BorderForeground(ColorPrimary)
	t.BinaryLabel = r.NewStyle().Foreground(ColorWarning).Bold(true)
	t.ContentTitle = r.NewStyle().Foreground(ColorInfo).Bold(true)

	t.FlashInfo = r.NewStyle().Foreground(ColorSuccess)
	t.FlashError = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.Spinner = r.NewStyle().Foreground(ThemeFg("#BD93F9"))

	return t
}

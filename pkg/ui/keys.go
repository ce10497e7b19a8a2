package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Up1Level key.Binding
	Focus    key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	CloseTab key.Binding
	Back     key.Binding
	Forward  key.Binding
	GoTo     key.Binding
	Copy     key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open/toggle"),
		),
		Up1Level: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("⌫", "parent"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev tab"),
		),
		CloseTab: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close tab"),
		),
		Back: key.NewBinding(
			key.WithKeys("alt+left", "H"),
			key.WithHelp("H", "back"),
		),
		Forward: key.NewBinding(
			key.WithKeys("alt+right", "L"),
			key.WithHelp("L", "forward"),
		),
		GoTo: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "go to path"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy url"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Up1Level, k.NextTab, k.CloseTab, k.Back, k.GoTo, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Up1Level, k.Focus},
		{k.NextTab, k.PrevTab, k.CloseTab},
		{k.Back, k.Forward, k.GoTo},
		{k.Copy, k.Refresh, k.Help, k.Quit},
	}
}

package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Expand      key.Binding
	Select      key.Binding
	SelectAll   key.Binding
	ClearSelect key.Binding
	TimeFilter  key.Binding
	MoreDays    key.Binding
	FewerDays   key.Binding
	DryRun      key.Binding
	Scan        key.Binding
	Cleanup     key.Binding
	Confirm     key.Binding
	Cancel      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Expand: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "expand chats"),
		),
		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle select"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "select all cleanable"),
		),
		ClearSelect: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear selection"),
		),
		TimeFilter: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "time filter"),
		),
		MoreDays: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "older than +1 day"),
		),
		FewerDays: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "older than -1 day"),
		),
		DryRun: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dry run"),
		),
		Scan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "scan"),
		),
		Cleanup: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clean up"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

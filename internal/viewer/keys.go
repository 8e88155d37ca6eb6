package viewer

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the viewer key bindings.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Mark     key.Binding
	Unmark   key.Binding
	Next     key.Binding
	Previous key.Binding
	NextHunk key.Binding
	PrevHunk key.Binding
	Clear    key.Binding
	Reload   key.Binding
	Tab      key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns the bindings for the help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Previous, k.NextHunk, k.PrevHunk, k.Mark, k.Help, k.Quit}
}

// FullHelp returns the bindings grouped for expanded help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Mark, k.Unmark},
		{k.Next, k.Previous, k.NextHunk, k.PrevHunk},
		{k.Clear, k.Reload, k.Tab, k.Help, k.Quit},
	}
}

// KeyMap returns the viewer key bindings.
func KeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Mark: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "mark"),
		),
		Unmark: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear marks"),
		),
		Next: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next file"),
		),
		Previous: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev file"),
		),
		NextHunk: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next hunk"),
		),
		PrevHunk: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "prev hunk"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear diff"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

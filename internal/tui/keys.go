package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines the keyboard bindings of the chat screen.
type KeyMap struct {
	Send        key.Binding
	Newline     key.Binding
	NewChat     key.Binding
	PrevSession key.Binding
	NextSession key.Binding
	Delete      key.Binding
	Copy        key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	Quick1      key.Binding
	Quick2      key.Binding
	Quick3      key.Binding
	Quick4      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter"),
			key.WithHelp("alt+enter", "newline"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		PrevSession: key.NewBinding(
			key.WithKeys("ctrl+up", "alt+up"),
			key.WithHelp("C-↑", "previous chat"),
		),
		NextSession: key.NewBinding(
			key.WithKeys("ctrl+down", "alt+down"),
			key.WithHelp("C-↓", "next chat"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete chat"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy reply"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Quick1: key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", QuickActions[0].Title)),
		Quick2: key.NewBinding(key.WithKeys("f2"), key.WithHelp("F2", QuickActions[1].Title)),
		Quick3: key.NewBinding(key.WithKeys("f3"), key.WithHelp("F3", QuickActions[2].Title)),
		Quick4: key.NewBinding(key.WithKeys("f4"), key.WithHelp("F4", QuickActions[3].Title)),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewChat, k.PrevSession, k.NextSession, k.Delete, k.Copy, k.Quit}
}

// FullHelp returns all bindings, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.Copy},
		{k.NewChat, k.PrevSession, k.NextSession, k.Delete},
		{k.ScrollUp, k.ScrollDown, k.Quit},
		{k.Quick1, k.Quick2, k.Quick3, k.Quick4},
	}
}

// quickActionIndex returns which quick action msg selects, or -1.
func (k KeyMap) quickActionIndex(msg tea.KeyMsg) int {
	for i, binding := range []key.Binding{k.Quick1, k.Quick2, k.Quick3, k.Quick4} {
		if key.Matches(msg, binding) {
			return i
		}
	}
	return -1
}

package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const sidebarWidth = 28

// Styles groups the lipgloss styles used by the chat screen.
type Styles struct {
	Sidebar        lipgloss.Style
	SidebarTitle   lipgloss.Style
	SessionItem    lipgloss.Style
	SessionActive  lipgloss.Style
	Header         lipgloss.Style
	HeaderMeta     lipgloss.Style
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Timestamp      lipgloss.Style
	Content        lipgloss.Style
	Empty          lipgloss.Style
	QuickTitle     lipgloss.Style
	QuickPrompt    lipgloss.Style
	Input          lipgloss.Style
	Status         lipgloss.Style
	Error          lipgloss.Style
}

// DefaultStyles returns the default palette. NO_COLOR disables colors.
func DefaultStyles() Styles {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	accent := lipgloss.AdaptiveColor{Light: "#1a73e8", Dark: "#8ab4f8"}
	subtle := lipgloss.AdaptiveColor{Light: "#5f6368", Dark: "#9aa0a6"}
	border := lipgloss.AdaptiveColor{Light: "#dadce0", Dark: "#3c4043"}

	return Styles{
		Sidebar: lipgloss.NewStyle().
			Width(sidebarWidth).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(border),
		SidebarTitle:  lipgloss.NewStyle().Bold(true).MarginBottom(1),
		SessionItem:   lipgloss.NewStyle().Foreground(subtle),
		SessionActive: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(border),
		HeaderMeta:     lipgloss.NewStyle().Foreground(subtle),
		UserLabel:      lipgloss.NewStyle().Bold(true),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Timestamp:      lipgloss.NewStyle().Foreground(subtle),
		Content:        lipgloss.NewStyle().PaddingLeft(2),
		Empty:          lipgloss.NewStyle().Bold(true).MarginBottom(1),
		QuickTitle:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		QuickPrompt:    lipgloss.NewStyle().Foreground(subtle).PaddingLeft(5),
		Input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border),
		Status: lipgloss.NewStyle().Foreground(subtle),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

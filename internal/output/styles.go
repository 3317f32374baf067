package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// PlainTextStyle prefixes a symbol so meaning survives without color.
type PlainTextStyle struct {
	prefix string
}

// Render implements TextStyle.
func (s PlainTextStyle) Render(strs ...string) string {
	text := ""
	for _, str := range strs {
		text += str
	}
	if s.prefix == "" {
		return text
	}
	return s.prefix + " " + text
}

func plainStyle(semantic SemanticType) PlainTextStyle {
	switch semantic {
	case SemanticInfo:
		return PlainTextStyle{prefix: "ℹ"}
	case SemanticSuccess:
		return PlainTextStyle{prefix: "✓"}
	case SemanticWarning:
		return PlainTextStyle{prefix: "⚠"}
	case SemanticError:
		return PlainTextStyle{prefix: "✗"}
	default:
		return PlainTextStyle{}
	}
}

// LipglossStyleProvider colors messages for the terminal behind w.
type LipglossStyleProvider struct {
	renderer *lipgloss.Renderer
	styles   map[SemanticType]lipgloss.Style
}

// NewLipglossStyleProvider detects the color profile of w.
func NewLipglossStyleProvider(w io.Writer) *LipglossStyleProvider {
	r := lipgloss.NewRenderer(w)
	return &LipglossStyleProvider{
		renderer: r,
		styles: map[SemanticType]lipgloss.Style{
			SemanticPlain:   r.NewStyle(),
			SemanticInfo:    r.NewStyle().Foreground(lipgloss.Color("33")),
			SemanticSuccess: r.NewStyle().Foreground(lipgloss.Color("42")),
			SemanticWarning: r.NewStyle().Foreground(lipgloss.Color("214")),
			SemanticError:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			SemanticMuted:   r.NewStyle().Foreground(lipgloss.Color("244")),
		},
	}
}

// GetStyle implements StyleProvider.
func (l *LipglossStyleProvider) GetStyle(semantic SemanticType) TextStyle {
	if style, ok := l.styles[semantic]; ok {
		return style
	}
	return l.styles[SemanticPlain]
}

// IsAvailable is false for pipes, files and NO_COLOR terminals.
func (l *LipglossStyleProvider) IsAvailable() bool {
	return l.renderer.ColorProfile() != termenv.Ascii
}

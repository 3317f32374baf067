// Package output prints gemchat's command-line messages. Messages carry a
// semantic type and are rendered with lipgloss on a color terminal, or with
// plain symbol prefixes everywhere else.
package output

// StyleProvider supplies a style per semantic type.
type StyleProvider interface {
	GetStyle(semantic SemanticType) TextStyle
	// IsAvailable reports whether styled output makes sense for the destination.
	IsAvailable() bool
}

// TextStyle renders text. lipgloss.Style satisfies it.
type TextStyle interface {
	Render(strs ...string) string
}

// Mode selects how the printer renders.
type Mode int

const (
	// ModeAuto styles when the provider is available.
	ModeAuto Mode = iota
	// ModePlain never styles.
	ModePlain
	// ModeJSON writes one {"type","message"} object per call.
	ModeJSON
)

// SemanticType is the meaning of a message.
type SemanticType string

const (
	SemanticPlain   SemanticType = "plain"
	SemanticInfo    SemanticType = "info"
	SemanticSuccess SemanticType = "success"
	SemanticWarning SemanticType = "warning"
	SemanticError   SemanticType = "error"
	SemanticMuted   SemanticType = "muted"
)

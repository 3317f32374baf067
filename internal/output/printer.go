package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Printer writes semantic messages. It is safe for concurrent use.
type Printer struct {
	styleProvider StyleProvider
	writer        io.Writer
	mode          Mode
	silent        bool

	mu sync.Mutex
}

// NewPrinter creates a printer writing to os.Stdout unless configured otherwise.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Print writes text as is.
func (p *Printer) Print(text string) {
	p.output(SemanticPlain, text, false)
}

// Printf writes formatted text as is.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.output(SemanticPlain, fmt.Sprintf(format, args...), false)
}

// Println writes text followed by a newline.
func (p *Printer) Println(text string) {
	p.output(SemanticPlain, text, true)
}

// Info writes an informational line.
func (p *Printer) Info(text string) {
	p.output(SemanticInfo, text, true)
}

// Success writes a completion line.
func (p *Printer) Success(text string) {
	p.output(SemanticSuccess, text, true)
}

// Warning writes a warning line.
func (p *Printer) Warning(text string) {
	p.output(SemanticWarning, text, true)
}

// Error writes an error line.
func (p *Printer) Error(text string) {
	p.output(SemanticError, text, true)
}

// Muted writes a de-emphasized line, such as table headers or hints.
func (p *Printer) Muted(text string) {
	p.output(SemanticMuted, text, true)
}

// IsStylable reports whether messages will carry terminal styling.
func (p *Printer) IsStylable() bool {
	return p.mode == ModeAuto && p.styleProvider != nil && p.styleProvider.IsAvailable()
}

func (p *Printer) output(semantic SemanticType, text string, addNewline bool) {
	if p.silent {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var finalText string
	switch {
	case p.mode == ModeJSON:
		finalText = renderJSON(semantic, text)
	case p.IsStylable():
		finalText = p.styleProvider.GetStyle(semantic).Render(text)
	default:
		finalText = plainStyle(semantic).Render(text)
	}
	if addNewline && p.mode != ModeJSON && !strings.HasSuffix(finalText, "\n") {
		finalText += "\n"
	}

	_, _ = fmt.Fprint(p.writer, finalText)
}

func renderJSON(semantic SemanticType, text string) string {
	data, err := json.Marshal(map[string]interface{}{
		"type":    semantic,
		"message": text,
	})
	if err != nil {
		return text + "\n"
	}
	return string(data) + "\n"
}

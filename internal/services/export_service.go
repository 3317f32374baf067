package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gemchat/pkg/chattypes"

	"gopkg.in/yaml.v3"
)

// Supported export formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// ExportFormats lists the formats accepted by Export.
var ExportFormats = []string{FormatMarkdown, FormatJSON, FormatYAML}

// ExportService renders sessions for sharing outside gemchat.
type ExportService struct {
	timeFormat string
	location   *time.Location
}

// NewExportService creates an export service that prints times in loc (UTC when nil).
func NewExportService(loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{timeFormat: "2006-01-02 15:04:05", location: loc}
}

// Name returns the service name "export".
func (e *ExportService) Name() string {
	return "export"
}

// Export renders session in the given format.
func (e *ExportService) Export(session chattypes.ChatSession, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown, "md", "":
		return e.ExportMarkdown(session), nil
	case FormatJSON:
		data, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode session as JSON: %w", err)
		}
		return string(data) + "\n", nil
	case FormatYAML, "yml":
		data, err := yaml.Marshal(session)
		if err != nil {
			return "", fmt.Errorf("failed to encode session as YAML: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported export format %q (supported: %s)", format, strings.Join(ExportFormats, ", "))
	}
}

// ExportMarkdown renders the conversation as a markdown transcript.
func (e *ExportService) ExportMarkdown(session chattypes.ChatSession) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", session.Title)
	fmt.Fprintf(&b, "- Session: `%s`\n", session.ID)
	fmt.Fprintf(&b, "- Created: %s\n", e.format(session.CreatedAt))
	fmt.Fprintf(&b, "- Updated: %s\n", e.format(session.UpdatedAt))
	fmt.Fprintf(&b, "- Messages: %d\n", len(session.Messages))

	for _, msg := range session.Messages {
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", msg.Role.DisplayName(), e.format(msg.Timestamp))
		content := msg.Content
		if msg.IsStreaming {
			content += " _(incomplete)_"
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}

func (e *ExportService) format(ts chattypes.Millis) string {
	return ts.Time().In(e.location).Format(e.timeFormat)
}

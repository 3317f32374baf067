// Package chattypes defines the session and message types shared by gemchat's
// orchestrator, persistence layer, model clients and presentation layer.
// This file contains the core conversation types and the title rules.
package chattypes

import (
	"strconv"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

// Supported message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the role as a plain string.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Gemini"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

const (
	// DefaultSessionTitle is shown for sessions that have no messages yet.
	DefaultSessionTitle = "New Chat"

	// TitleMaxLength is the number of characters kept from the first user message.
	TitleMaxLength = 30

	titleEllipsis = "..."
)

// Millis is a timestamp serialized as Unix milliseconds.
type Millis time.Time

// MillisOf converts a time.Time into a Millis, truncated to millisecond
// precision so that values survive a persistence round trip unchanged.
func MillisOf(t time.Time) Millis {
	return Millis(time.UnixMilli(t.UnixMilli()))
}

// Time returns the underlying time value.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

// MarshalJSON encodes the timestamp as a JSON number of milliseconds.
func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(m).UnixMilli(), 10)), nil
}

// UnmarshalJSON decodes a JSON number of milliseconds.
func (m *Millis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		// Fractional values come from Date.now() arithmetic in older snapshots.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if ferr != nil {
			return err
		}
		ms = int64(f)
	}
	*m = Millis(time.UnixMilli(ms))
	return nil
}

// MarshalYAML encodes the timestamp as milliseconds for YAML exports.
func (m Millis) MarshalYAML() (interface{}, error) {
	return time.Time(m).UnixMilli(), nil
}

// Equal reports whether both timestamps denote the same millisecond.
func (m Millis) Equal(other Millis) bool {
	return time.Time(m).UnixMilli() == time.Time(other).UnixMilli()
}

// Message represents a single entry in a session's conversation.
// Content is only mutated while IsStreaming is true.
type Message struct {
	ID          string `json:"id" yaml:"id"`
	Role        Role   `json:"role" yaml:"role"`
	Content     string `json:"content" yaml:"content"`
	Timestamp   Millis `json:"timestamp" yaml:"timestamp"`
	IsStreaming bool   `json:"isStreaming,omitempty" yaml:"isStreaming,omitempty"`
}

// ChatSession represents one persisted conversation.
// Messages are kept in conversation order.
type ChatSession struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Messages  []Message `json:"messages" yaml:"messages"`
	CreatedAt Millis    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt Millis    `json:"updatedAt" yaml:"updatedAt"`
}

// LastMessage returns the most recent message, if any.
func (s ChatSession) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAssistantMessage returns the most recent assistant message, if any.
func (s ChatSession) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// StreamingCount returns how many messages are still marked as streaming.
func (s ChatSession) StreamingCount() int {
	count := 0
	for _, msg := range s.Messages {
		if msg.IsStreaming {
			count++
		}
	}
	return count
}

// Clone returns a copy of the session that shares no message storage.
func (s ChatSession) Clone() ChatSession {
	clone := s
	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	return clone
}

// DeriveTitle builds a session title from the first user message.
// The text is cut to TitleMaxLength characters and suffixed with "..." when longer.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleMaxLength {
		return text
	}
	return string(runes[:TitleMaxLength]) + titleEllipsis
}

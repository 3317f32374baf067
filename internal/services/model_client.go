// Package services provides gemchat's session orchestrator, persistence adapter,
// model provider clients and export service.
package services

import (
	"context"
	"strings"

	"gemchat/internal/config"
	"gemchat/pkg/chattypes"
)

// SystemInstruction is sent with every turn, whatever the provider.
const SystemInstruction = "You are a helpful, brilliant AI assistant similar to ChatGPT. " +
	"You provide concise, accurate, and conversational responses. " +
	"Format your output using Markdown. If you use code blocks, specify the language."

// ErrMissingAPIKey is returned when a client is built without a credential.
var ErrMissingAPIKey = config.ErrMissingAPIKey

// turnMessages flattens one turn into the messages a provider sees: the prior
// history without system or empty messages, followed by the new user text.
func turnMessages(history []chattypes.Message, newText string) []chattypes.Message {
	out := make([]chattypes.Message, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == chattypes.RoleSystem || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role != chattypes.RoleUser && msg.Role != chattypes.RoleAssistant {
			continue
		}
		out = append(out, msg)
	}
	return append(out, chattypes.Message{Role: chattypes.RoleUser, Content: newText})
}

// emitChunk delivers a chunk unless the consumer's context is done.
func emitChunk(ctx context.Context, out chan<- chattypes.StreamChunk, chunk chattypes.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

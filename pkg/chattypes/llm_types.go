// Package chattypes defines LLM-related types and interfaces for gemchat.
// This file contains the streaming contract between the orchestrator and model providers.
package chattypes

import "context"

// StreamChunk represents a single element of a streaming response.
// Exactly one chunk in a stream is terminal: either Done is true or Error is set.
type StreamChunk struct {
	Content string // The text fragment carried by this chunk
	Done    bool   // End-of-sequence marker
	Error   error  // Terminal error; partial content already delivered stays delivered
}

// ModelClient defines the interface for LLM provider implementations.
// Implementations translate gemchat messages to the provider's wire format and
// always apply the same fixed system instruction.
type ModelClient interface {
	// StreamChat starts one conversational turn. History holds the messages that
	// precede the turn; newText is the user's message for this turn. The returned
	// channel yields fragments in emission order and is closed after the terminal chunk.
	StreamChat(ctx context.Context, history []Message, newText string) (<-chan StreamChunk, error)

	// GetProviderName returns the provider name (e.g. "gemini").
	GetProviderName() string

	// GetModelName returns the fixed model identifier used for every call.
	GetModelName() string
}

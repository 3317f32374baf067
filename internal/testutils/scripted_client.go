package testutils

import (
	"context"
	"errors"
	"sync"

	"gemchat/pkg/chattypes"
)

// ErrNoScriptedTurn is returned when the client runs out of scripted turns.
var ErrNoScriptedTurn = errors.New("scripted client: no turn left")

// ScriptedTurn describes how the fake answers one StreamChat call.
type ScriptedTurn struct {
	Chunks    []string      // fragments emitted in order
	OpenErr   error         // returned from StreamChat itself; nothing is streamed
	StreamErr error         // emitted as the terminal chunk after Chunks
	Release   chan struct{} // if set, the stream waits for it before emitting anything
}

// ScriptedCall records the arguments of one StreamChat call.
type ScriptedCall struct {
	History []chattypes.Message
	NewText string
}

// ScriptedClient is a chattypes.ModelClient that replays scripted turns.
type ScriptedClient struct {
	mu    sync.Mutex
	turns []ScriptedTurn
	calls []ScriptedCall

	Provider string
	Model    string
}

// NewScriptedClient creates a client that answers calls with turns, in order.
func NewScriptedClient(turns ...ScriptedTurn) *ScriptedClient {
	return &ScriptedClient{
		turns:    turns,
		Provider: "scripted",
		Model:    "scripted-model",
	}
}

// Reply is shorthand for a successful turn emitting the given fragments.
func Reply(chunks ...string) ScriptedTurn {
	return ScriptedTurn{Chunks: chunks}
}

// Enqueue appends more turns.
func (c *ScriptedClient) Enqueue(turns ...ScriptedTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
}

// Calls returns a copy of the recorded calls.
func (c *ScriptedClient) Calls() []ScriptedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScriptedCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// GetProviderName returns the configured provider name.
func (c *ScriptedClient) GetProviderName() string {
	return c.Provider
}

// GetModelName returns the configured model name.
func (c *ScriptedClient) GetModelName() string {
	return c.Model
}

// StreamChat replays the next scripted turn.
func (c *ScriptedClient) StreamChat(ctx context.Context, history []chattypes.Message, newText string) (<-chan chattypes.StreamChunk, error) {
	c.mu.Lock()
	historyCopy := make([]chattypes.Message, len(history))
	copy(historyCopy, history)
	c.calls = append(c.calls, ScriptedCall{History: historyCopy, NewText: newText})

	if len(c.turns) == 0 {
		c.mu.Unlock()
		return nil, ErrNoScriptedTurn
	}
	turn := c.turns[0]
	c.turns = c.turns[1:]
	c.mu.Unlock()

	if turn.OpenErr != nil {
		return nil, turn.OpenErr
	}

	out := make(chan chattypes.StreamChunk)
	go func() {
		defer close(out)

		send := func(chunk chattypes.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if turn.Release != nil {
			select {
			case <-turn.Release:
			case <-ctx.Done():
				send(chattypes.StreamChunk{Error: ctx.Err()})
				return
			}
		}

		for _, content := range turn.Chunks {
			if !send(chattypes.StreamChunk{Content: content}) {
				return
			}
		}
		if turn.StreamErr != nil {
			send(chattypes.StreamChunk{Error: turn.StreamErr})
			return
		}
		send(chattypes.StreamChunk{Done: true})
	}()
	return out, nil
}

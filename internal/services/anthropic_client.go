package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gemchat/internal/logger"
	"gemchat/pkg/chattypes"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is the model used when none is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// anthropicMaxTokens caps each reply; the Messages API requires a limit.
const anthropicMaxTokens = 4096

// AnthropicClient implements chattypes.ModelClient with Anthropic streaming messages.
type AnthropicClient struct {
	apiKey  string
	model   string
	baseURL string

	mu     sync.Mutex
	client *anthropic.Client
}

// NewAnthropicClient creates an Anthropic client. An empty model selects DefaultAnthropicModel.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w for provider anthropic", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{apiKey: apiKey, model: model}, nil
}

// GetProviderName returns the provider name for this client.
func (c *AnthropicClient) GetProviderName() string {
	return "anthropic"
}

// GetModelName returns the model used for every turn.
func (c *AnthropicClient) GetModelName() string {
	return c.model
}

// SetBaseURL points the client at another Messages API endpoint.
func (c *AnthropicClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
	c.client = nil
}

func (c *AnthropicClient) initializeClientIfNeeded() *anthropic.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client
	}

	options := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.baseURL != "" {
		options = append(options, option.WithBaseURL(c.baseURL))
	}

	client := anthropic.NewClient(options...)
	c.client = &client
	logger.Debug("Anthropic client initialized", "provider", "anthropic", "model", c.model)
	return c.client
}

// StreamChat streams one turn from Anthropic.
func (c *AnthropicClient) StreamChat(ctx context.Context, history []chattypes.Message, newText string) (<-chan chattypes.StreamChunk, error) {
	client := c.initializeClientIfNeeded()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  convertMessagesToAnthropic(turnMessages(history, newText)),
		System:    []anthropic.TextBlockParam{{Text: SystemInstruction}},
	}
	logger.Debug("Anthropic stream starting", "model", c.model, "message_count", len(params.Messages))

	stream := client.Messages.NewStreaming(ctx, params)

	out := make(chan chattypes.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		chunks := 0
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			chunks++
			if !emitChunk(ctx, out, chattypes.StreamChunk{Content: text.Text}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			logger.Error("Anthropic stream failed", "error", err, "chunks", chunks)
			emitChunk(ctx, out, chattypes.StreamChunk{Error: fmt.Errorf("anthropic stream failed: %w", err)})
			return
		}

		logger.Debug("Anthropic stream completed", "chunks", chunks)
		emitChunk(ctx, out, chattypes.StreamChunk{Done: true})
	}()

	return out, nil
}

func convertMessagesToAnthropic(messages []chattypes.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case chattypes.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}
